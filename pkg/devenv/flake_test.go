// SPDX-License-Identifier: MIT

package devenv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wantRustFlake = `{
  inputs = {
    conch.url = "github:mibmo/conch";
  };

  outputs = { conch, ... }: conch.load ./. {
    platforms = [
      "x86_64-linux"
      "aarch64-linux"
      "x86_64-darwin"
      "aarch64-darwin"
    ];

    settings = {
      development = {
        rust = {
          enable = true;
          profile = "stable";
        };
      };

      packages = [
        "openssl"
        "pkg-config"
      ];
    };
  };
}
`

func TestRenderFlake_Golden(t *testing.T) {
	d, err := Load(filepath.Join("testdata", "rust.yaml"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, d.RenderFlake(&buf))
	assert.Equal(t, wantRustFlake, buf.String())
}

func TestRenderFlake_Deterministic(t *testing.T) {
	d := &Descriptor{
		Platforms: []Platform{{Arch: "x86_64", OS: "linux"}},
		Development: Development{
			"zig":  {Enable: true},
			"go":   {Enable: true, Profile: "1.24"},
			"rust": {Enable: false, Profile: "nightly"},
		},
	}

	var first bytes.Buffer
	require.NoError(t, d.RenderFlake(&first))

	// Map iteration order must not leak into the output.
	for i := 0; i < 10; i++ {
		var again bytes.Buffer
		require.NoError(t, d.RenderFlake(&again))
		require.Equal(t, first.String(), again.String())
	}

	goIdx := strings.Index(first.String(), "go = {")
	rustIdx := strings.Index(first.String(), "rust = {")
	zigIdx := strings.Index(first.String(), "zig = {")
	require.True(t, goIdx >= 0 && rustIdx >= 0 && zigIdx >= 0)
	assert.Less(t, goIdx, rustIdx)
	assert.Less(t, rustIdx, zigIdx)
}

func TestRenderFlake_OmitsEmptySections(t *testing.T) {
	d := &Descriptor{
		Platforms: []Platform{{Arch: "x86_64", OS: "linux"}},
	}

	var buf bytes.Buffer
	require.NoError(t, d.RenderFlake(&buf))

	out := buf.String()
	assert.NotContains(t, out, "development")
	assert.NotContains(t, out, "packages")
	assert.Contains(t, out, `"x86_64-linux"`)
}

func TestRenderFlake_OmitsEmptyProfile(t *testing.T) {
	d := &Descriptor{
		Platforms:   []Platform{{Arch: "x86_64", OS: "linux"}},
		Development: Development{"go": {Enable: true}},
	}

	var buf bytes.Buffer
	require.NoError(t, d.RenderFlake(&buf))

	out := buf.String()
	assert.Contains(t, out, "enable = true;")
	assert.NotContains(t, out, "profile")
}

func TestWriteFlake(t *testing.T) {
	d, err := Load(filepath.Join("testdata", "rust.yaml"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "flake.nix")
	require.NoError(t, d.WriteFlake(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wantRustFlake, string(data))

	// Overwriting is atomic and leaves no temp files behind.
	require.NoError(t, d.WriteFlake(path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
