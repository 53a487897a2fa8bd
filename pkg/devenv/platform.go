// SPDX-License-Identifier: MIT

package devenv

import (
	"fmt"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Platform is a Nix-style target platform identifier: an architecture and
// an operating system joined by a hyphen, e.g. "x86_64-linux" or
// "aarch64-darwin".
type Platform struct {
	Arch string
	OS   string
}

// Known architecture and OS identifiers accepted by Validate. Parsing is
// deliberately more permissive so descriptors for exotic targets survive a
// round trip; the evaluator has the final word either way.
var (
	knownArches = []string{"x86_64", "aarch64", "i686", "armv7l"}
	knownOSes   = []string{"linux", "darwin"}
)

// ParsePlatform parses an "<arch>-<os>" identifier. The architecture may
// itself contain underscores (x86_64) but never hyphens, so the first
// hyphen is the separator.
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Platform{}, fmt.Errorf("platform identifier is empty")
	}

	arch, os, found := strings.Cut(s, "-")
	if !found {
		return Platform{}, fmt.Errorf("invalid platform %q (expected <arch>-<os>)", s)
	}
	if arch == "" || os == "" {
		return Platform{}, fmt.Errorf("invalid platform %q (expected <arch>-<os>)", s)
	}

	return Platform{Arch: arch, OS: os}, nil
}

// String returns the canonical "<arch>-<os>" form.
func (p Platform) String() string {
	return p.Arch + "-" + p.OS
}

// UnmarshalYAML decodes a platform from its scalar string form.
func (p *Platform) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePlatform(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes a platform as its scalar string form.
func (p Platform) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// CurrentPlatform returns the Nix platform identifier for the running
// process. Go and Nix disagree on architecture names, so GOARCH is
// translated; unrecognized values pass through unchanged.
func CurrentPlatform() Platform {
	return Platform{Arch: goArchToNix(runtime.GOARCH), OS: runtime.GOOS}
}

func goArchToNix(arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armv7l"
	default:
		return arch
	}
}

func knownArch(arch string) bool {
	for _, a := range knownArches {
		if arch == a {
			return true
		}
	}
	return false
}

func knownOS(os string) bool {
	for _, o := range knownOSes {
		if os == o {
			return true
		}
	}
	return false
}
