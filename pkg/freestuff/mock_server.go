// SPDX-License-Identifier: MIT
package freestuff

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockServer provides a configurable FreeStuff API mock for testing.
type MockServer struct {
	*httptest.Server
	mu          sync.Mutex
	key         string
	categories  map[Category][]GameID
	games       map[GameID]GameInfo
	failures    map[string]int // failures before success per path prefix
	ratelimited bool
}

// NewMockServer creates a FreeStuff API mock with realistic default data.
func NewMockServer() *MockServer {
	mock := &MockServer{
		categories: make(map[Category][]GameID),
		games:      make(map[GameID]GameInfo),
		failures:   make(map[string]int),
	}
	mock.SetDefaultData()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ping", mock.handlePing)
	mux.HandleFunc("/v1/games/", mock.handleGameList)
	mux.HandleFunc("/v1/game/", mock.handleGameDetails)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetDefaultData populates the mock with two free games and one discount.
func (m *MockServer) SetDefaultData() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDefaultDataNoLock()
}

// setDefaultDataNoLock is used internally by Reset() which already holds
// the lock.
func (m *MockServer) setDefaultDataNoLock() {
	euro := func(v float64) *float64 { return &v }

	m.games = map[GameID]GameInfo{
		7392: {
			URLs:     URLs{Default: "https://gaming.example/r/7392", Browser: "https://store.example/app/48210", Org: "https://store.example/app/48210"},
			Title:    "Derelict Station",
			OrgPrice: &Price{Euro: euro(19.99), Dollar: euro(19.99)},
			Price:    &Price{Euro: euro(0), Dollar: euro(0)},
			Thumbnail: &Thumbnail{
				Org:   "https://cdn.example/t/7392/org.jpg",
				Blank: "https://cdn.example/t/7392/blank.jpg",
				Full:  "https://cdn.example/t/7392/full.jpg",
				Tags:  "https://cdn.example/t/7392/tags.jpg",
			},
			Kind:        KindGame,
			Tags:        []string{"Survival", "Space"},
			Description: "Salvage a drifting station before the orbit decays.",
			Store:       StoreSteam,
			Type:        TypeFree,
		},
		7393: {
			URLs:        URLs{Default: "https://gaming.example/r/7393", Browser: "https://epic.example/p/cellar-door", Org: "https://epic.example/p/cellar-door"},
			Title:       "Cellar Door",
			OrgPrice:    &Price{Euro: euro(9.99), Dollar: euro(10.99)},
			Price:       &Price{Euro: euro(0), Dollar: euro(0)},
			Kind:        KindGame,
			Tags:        []string{"Puzzle"},
			Description: "A quiet puzzle box about what lives under the house.",
			Store:       StoreEpic,
			Type:        TypeFree,
			Flags:       FlagThirdParty,
		},
		7400: {
			URLs:     URLs{Default: "https://gaming.example/r/7400", Browser: "https://gog.example/game/tidemarks", Org: "https://gog.example/game/tidemarks"},
			Title:    "Tidemarks",
			OrgPrice: &Price{Euro: euro(24.99), Dollar: euro(24.99)},
			Price:    &Price{Euro: euro(4.99), Dollar: euro(4.99)},
			Kind:     KindGame,
			Tags:     []string{"Adventure", "Sailing"},
			Store:    StoreGog,
			Type:     TypeDiscount,
		},
	}
	m.categories = map[Category][]GameID{
		CategoryAll:      {7392, 7393, 7400},
		CategoryApproved: {7392, 7393, 7400},
		CategoryFree:     {7392, 7393},
	}
}

// SetKey makes the mock require Authorization: Basic <key> on every call.
func (m *MockServer) SetKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
}

// SetCategory replaces the ID list for a category.
func (m *MockServer) SetCategory(category Category, ids []GameID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[category] = ids
}

// AddGame registers a game so detail requests can resolve it.
func (m *MockServer) AddGame(id GameID, info GameInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[id] = info
}

// SetFailures sets the number of 500 responses before success for a path
// prefix (e.g. "/v1/games").
func (m *MockServer) SetFailures(pathPrefix string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pathPrefix] = count
}

// SetRatelimited makes every subsequent request fail with HTTP 429.
func (m *MockServer) SetRatelimited(ratelimited bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratelimited = ratelimited
}

// Reset clears all mock data and restores the defaults.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	m.failures = make(map[string]int)
	m.ratelimited = false
	m.setDefaultDataNoLock()
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Requests counted against failure injection and auth happen here so every
// handler behaves the same.
func (m *MockServer) gate(w http.ResponseWriter, r *http.Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ratelimited {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return false
	}
	for prefix, n := range m.failures {
		if n > 0 && strings.HasPrefix(r.URL.Path, prefix) {
			m.failures[prefix] = n - 1
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return false
		}
	}
	if m.key != "" && r.Header.Get("Authorization") != "Basic "+m.key {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (m *MockServer) handlePing(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	writeEnvelope(w, json.RawMessage(`{}`))
}

func (m *MockServer) handleGameList(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}

	category := Category(strings.TrimPrefix(r.URL.Path, "/v1/games/"))

	m.mu.Lock()
	ids, ok := m.categories[category]
	m.mu.Unlock()

	if !ok {
		writeEnvelopeError(w, "invalid category")
		return
	}
	writeEnvelope(w, ids)
}

func (m *MockServer) handleGameDetails(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}

	// Path shape: /v1/game/{id+id+...}/info
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/game/")
	trimmed = strings.TrimSuffix(trimmed, "/info")

	m.mu.Lock()
	defer m.mu.Unlock()

	details := make(map[string]GameInfo)
	for _, part := range strings.Split(trimmed, "+") {
		raw, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			writeEnvelopeError(w, "invalid game id")
			return
		}
		if info, ok := m.games[GameID(raw)]; ok {
			details[part] = info
		}
	}
	writeEnvelope(w, details)
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeEnvelopeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "bad request",
		"message": message,
	})
}
