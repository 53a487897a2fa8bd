// SPDX-License-Identifier: MIT

package devenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Platform
		wantErr bool
	}{
		{"x86_64 linux", "x86_64-linux", Platform{Arch: "x86_64", OS: "linux"}, false},
		{"aarch64 darwin", "aarch64-darwin", Platform{Arch: "aarch64", OS: "darwin"}, false},
		{"i686 linux", "i686-linux", Platform{Arch: "i686", OS: "linux"}, false},
		{"armv7l linux", "armv7l-linux", Platform{Arch: "armv7l", OS: "linux"}, false},
		{"surrounding whitespace", "  x86_64-linux  ", Platform{Arch: "x86_64", OS: "linux"}, false},
		{"exotic but well-formed", "riscv64-linux", Platform{Arch: "riscv64", OS: "linux"}, false},
		{"empty", "", Platform{}, true},
		{"no separator", "x86_64", Platform{}, true},
		{"missing os", "x86_64-", Platform{}, true},
		{"missing arch", "-linux", Platform{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlatformString_RoundTrip(t *testing.T) {
	for _, s := range []string{"x86_64-linux", "aarch64-darwin", "i686-linux", "armv7l-linux"} {
		p, err := ParsePlatform(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}
}

func TestPlatformYAML_RoundTrip(t *testing.T) {
	in := []Platform{
		{Arch: "x86_64", OS: "linux"},
		{Arch: "aarch64", OS: "darwin"},
	}

	data, err := yaml.Marshal(in)
	require.NoError(t, err)

	var out []Platform
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestCurrentPlatform(t *testing.T) {
	p := CurrentPlatform()
	require.NotEmpty(t, p.Arch)
	require.NotEmpty(t, p.OS)

	// Must round-trip through the parser.
	parsed, err := ParsePlatform(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestGoArchToNix(t *testing.T) {
	tests := []struct {
		goArch string
		want   string
	}{
		{"amd64", "x86_64"},
		{"arm64", "aarch64"},
		{"386", "i686"},
		{"arm", "armv7l"},
		{"riscv64", "riscv64"}, // passthrough for unmapped values
	}

	for _, tt := range tests {
		if got := goArchToNix(tt.goArch); got != tt.want {
			t.Errorf("goArchToNix(%q) = %q, want %q", tt.goArch, got, tt.want)
		}
	}
}
