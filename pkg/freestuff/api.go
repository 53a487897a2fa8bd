// SPDX-License-Identifier: MIT

package freestuff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// GameID identifies a single product announcement.
type GameID uint64

func (id GameID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Category selects which game list to fetch.
type Category string

const (
	// CategoryAll lists every game known to the API.
	CategoryAll Category = "all"
	// CategoryApproved lists games approved by the moderation team.
	CategoryApproved Category = "approved"
	// CategoryFree lists games that are currently free to keep.
	CategoryFree Category = "free"
)

// ServiceStatus reports upstream service health, as delivered by the
// status webhook event.
type ServiceStatus string

const (
	// StatusOk means everything is alright.
	StatusOk ServiceStatus = "ok"
	// StatusPartial means the service is experiencing partial issues.
	StatusPartial ServiceStatus = "partial"
	// StatusRebooting is sent on server startup.
	StatusRebooting ServiceStatus = "rebooting"
	// StatusFatal is sent on errors that require human interaction.
	StatusFatal ServiceStatus = "fatal"
)

// Store identifies the shop a product is sold on. Values the client does
// not know about are preserved as-is rather than rejected.
type Store string

const (
	StoreSteam   Store = "steam"
	StoreEpic    Store = "epic"
	StoreHumble  Store = "humble"
	StoreGog     Store = "gog"
	StoreOrigin  Store = "origin"
	StoreUplay   Store = "uplay"
	StoreTwitch  Store = "twitch"
	StoreItch    Store = "itch"
	StoreDiscord Store = "discord"
	StoreApple   Store = "apple"
	StoreGoogle  Store = "google"
	StoreSwitch  Store = "switch"
	StorePS      Store = "ps"
	StoreXbox    Store = "xbox"
)

// AnnouncementType classifies what kind of promotion an announcement is.
// Unknown values are preserved as-is.
type AnnouncementType string

const (
	// TypeFree marks products that are free to keep.
	TypeFree AnnouncementType = "free"
	// TypeWeekend marks products playable during a weekend.
	TypeWeekend AnnouncementType = "weekend"
	// TypeDiscount marks discounted products.
	TypeDiscount AnnouncementType = "discount"
	// TypeAd marks advertisements.
	TypeAd AnnouncementType = "ad"
)

// ProductKind classifies the product itself. Unknown values are preserved
// as-is.
type ProductKind string

const (
	KindGame     ProductKind = "game"
	KindDLC      ProductKind = "dlc"
	KindSoftware ProductKind = "software"
	KindArt      ProductKind = "art"
	KindOST      ProductKind = "ost"
	KindBook     ProductKind = "book"
)

// GameFlags is a bitfield of quality hints attached to an announcement.
type GameFlags uint8

const (
	// FlagTrash marks low quality games.
	FlagTrash GameFlags = 1 << iota
	// FlagThirdParty marks keys provided by a third party rather than the
	// store itself.
	FlagThirdParty
)

// Trash reports whether the low-quality flag is set.
func (f GameFlags) Trash() bool { return f&FlagTrash != 0 }

// ThirdParty reports whether the third-party key provider flag is set.
func (f GameFlags) ThirdParty() bool { return f&FlagThirdParty != 0 }

// Inner returns the raw bitflag value.
func (f GameFlags) Inner() uint8 { return uint8(f) }

// EpochSeconds is a unix timestamp in seconds. The API encodes it as a
// JSON number, occasionally with a fractional part.
type EpochSeconds float64

// Time converts the timestamp to a time.Time.
func (e EpochSeconds) Time() time.Time {
	sec := int64(e)
	nsec := int64((float64(e) - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// URLs carries the link variants for a product.
type URLs struct {
	// Default is the recommended URL.
	Default string `json:"default"`
	// Browser opens in a web browser.
	Browser string `json:"browser"`
	// Client opens in the store's desktop client (e.g. steam://), when one
	// exists.
	Client string `json:"client,omitempty"`
	// Org is the original, unproxied URL.
	Org string `json:"org"`
}

// Price holds per-currency prices.
type Price struct {
	Euro   *float64 `json:"euro"`
	Dollar *float64 `json:"dollar"`
}

// Thumbnail holds the thumbnail image variants.
type Thumbnail struct {
	// Org is the original thumbnail image.
	Org string `json:"org"`
	// Blank is the proxied and properly cropped thumbnail image.
	Blank string `json:"blank"`
	// Full is the proxied image with all available extra info.
	Full string `json:"full"`
	// Tags is the proxied image with game tags above the thumbnail.
	Tags string `json:"tags"`
}

// LocalizedGameInfo carries announcement text for one language.
type LocalizedGameInfo struct {
	LangName      string   `json:"lang_name"`
	LangNameEn    string   `json:"lang_name_en"`
	LangFlagEmoji string   `json:"lang_flag_emoji"`
	Platform      string   `json:"platform"`
	ClaimLong     string   `json:"claim_long"`
	ClaimShort    string   `json:"claim_short"`
	Free          string   `json:"free"`
	Header        string   `json:"header"`
	Footer        string   `json:"footer"`
	OrgPriceEur   string   `json:"org_price_eur"`
	OrgPriceUsd   string   `json:"org_price_usd"`
	Until         string   `json:"until"`
	UntilAlt      string   `json:"until_alt"`
	Flags         []string `json:"flags"`
}

// GameInfo describes a single product announcement.
type GameInfo struct {
	// URLs carries all link variants for the product.
	URLs URLs `json:"urls"`
	// URL is the proxy URL.
	//
	// Deprecated: use URLs.Default.
	URL string `json:"url"`
	// OrgURL is the direct URL.
	//
	// Deprecated: use URLs.Org.
	OrgURL string `json:"org_url"`
	// Title is the product title.
	Title string `json:"title"`
	// OrgPrice is the price before the discount, nil when unknown.
	OrgPrice *Price `json:"org_price"`
	// Price is the price with the discount applied, nil when unknown.
	Price *Price `json:"price"`
	// Thumbnail holds image variants, nil when unknown.
	Thumbnail *Thumbnail `json:"thumbnail"`
	// Kind is the product kind.
	Kind ProductKind `json:"kind"`
	// Tags are free-form product tags.
	Tags []string `json:"tags"`
	// Description is the product description, empty when absent.
	Description string `json:"description"`
	// Rating is the product rating between 0 and 1, nil when absent.
	Rating *float64 `json:"rating"`
	// Notice is an optional remark from the API.
	Notice string `json:"notice"`
	// Until is when the promotion ends, nil when open-ended or unknown.
	Until *EpochSeconds `json:"until"`
	// Store is the shop the product is sold on.
	Store Store `json:"store"`
	// Flags carries quality hints.
	Flags GameFlags `json:"flags"`
	// Type is the announcement type.
	Type AnnouncementType `json:"type"`
	// Localized maps language codes to localized announcement text.
	Localized map[string]LocalizedGameInfo `json:"localized,omitempty"`
}

// UnmarshalJSON decodes a GameInfo. The upstream API encodes missing
// prices and thumbnails as empty objects rather than null, so those fields
// are normalised to nil here.
func (g *GameInfo) UnmarshalJSON(b []byte) error {
	type plain GameInfo
	aux := struct {
		OrgPrice  json.RawMessage `json:"org_price"`
		Price     json.RawMessage `json:"price"`
		Thumbnail json.RawMessage `json:"thumbnail"`
		*plain
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var err error
	if g.OrgPrice, err = priceFromRaw(aux.OrgPrice); err != nil {
		return fmt.Errorf("org_price: %w", err)
	}
	if g.Price, err = priceFromRaw(aux.Price); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if g.Thumbnail, err = thumbnailFromRaw(aux.Thumbnail); err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	return nil
}

// emptyJSON reports whether raw is absent, null, or an empty object.
func emptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	if trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return false
	}
	inner := bytes.TrimSpace(trimmed[1 : len(trimmed)-1])
	return len(inner) == 0
}

func priceFromRaw(raw json.RawMessage) (*Price, error) {
	if emptyJSON(raw) {
		return nil, nil
	}
	var p Price
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func thumbnailFromRaw(raw json.RawMessage) (*Thumbnail, error) {
	if emptyJSON(raw) {
		return nil, nil
	}
	var t Thumbnail
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
