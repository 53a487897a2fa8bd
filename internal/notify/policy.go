// SPDX-License-Identifier: MIT

package notify

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrTargetNotAllowed indicates a delivery target did not satisfy the policy.
var ErrTargetNotAllowed = errors.New("notify: target not allowed")

// Policy constrains where notifications may be delivered. Targets come from
// operator configuration, not user input, so the checks are purely syntactic:
// scheme and host shape only, no DNS resolution.
type Policy struct {
	// AllowedHosts restricts deliveries to exactly these hosts when
	// non-empty. Entries are bare hosts without scheme or port and are
	// normalized the same way target hosts are.
	AllowedHosts []string
	// AllowInsecure additionally permits plain http targets.
	AllowInsecure bool
}

// NormalizeHost validates and normalizes a host for comparison. IP literals
// normalize to their canonical text form, names to lowercase punycode.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// Check verifies a target URL against the policy.
func (p Policy) Check(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("target url empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid target url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("target missing host")
	}
	if u.User != nil {
		return fmt.Errorf("target must not include userinfo")
	}
	if u.Fragment != "" {
		return fmt.Errorf("target must not include fragment")
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !p.AllowInsecure {
			return fmt.Errorf("plain http target: %w", ErrTargetNotAllowed)
		}
	default:
		return fmt.Errorf("scheme %q: %w", u.Scheme, ErrTargetNotAllowed)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return err
	}
	if len(p.AllowedHosts) == 0 {
		return nil
	}
	for _, entry := range p.AllowedHosts {
		normalized, err := NormalizeHost(entry)
		if err != nil {
			return fmt.Errorf("allowlist entry %q: %w", entry, err)
		}
		if normalized == host {
			return nil
		}
	}
	return fmt.Errorf("host %q not in allowlist: %w", host, ErrTargetNotAllowed)
}
