// SPDX-License-Identifier: MIT

package devenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mibmo/freestuffapi-go/internal/validate"
)

func validDescriptor() *Descriptor {
	return &Descriptor{
		Platforms: []Platform{
			{Arch: "x86_64", OS: "linux"},
			{Arch: "aarch64", OS: "linux"},
			{Arch: "x86_64", OS: "darwin"},
			{Arch: "aarch64", OS: "darwin"},
		},
		Development: Development{
			"rust": {Enable: true, Profile: "stable"},
		},
		Packages: []string{"openssl", "pkg-config"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validDescriptor().Validate())
}

func TestValidate_Platforms(t *testing.T) {
	t.Run("at least one required", func(t *testing.T) {
		d := validDescriptor()
		d.Platforms = nil
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one platform")
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		d := validDescriptor()
		d.Platforms = append(d.Platforms, Platform{Arch: "x86_64", OS: "linux"})
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate platform")
	})

	t.Run("unknown arch rejected", func(t *testing.T) {
		d := validDescriptor()
		d.Platforms[0] = Platform{Arch: "sparc64", OS: "linux"}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown architecture")
	})

	t.Run("unknown os rejected", func(t *testing.T) {
		d := validDescriptor()
		d.Platforms[0] = Platform{Arch: "x86_64", OS: "freebsd"}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown operating system")
	})
}

func TestValidate_Profiles(t *testing.T) {
	channels := []string{"stable", "beta", "nightly", "latest"}
	for _, channel := range channels {
		t.Run("channel "+channel, func(t *testing.T) {
			d := validDescriptor()
			d.Development = Development{"rust": {Enable: true, Profile: channel}}
			assert.NoError(t, d.Validate())
		})
	}

	t.Run("exact version accepted", func(t *testing.T) {
		d := validDescriptor()
		d.Development = Development{"rust": {Enable: true, Profile: "1.75.0"}}
		assert.NoError(t, d.Validate())
	})

	t.Run("partial version accepted", func(t *testing.T) {
		d := validDescriptor()
		d.Development = Development{"go": {Enable: true, Profile: "1.24"}}
		assert.NoError(t, d.Validate())
	})

	t.Run("empty profile accepted", func(t *testing.T) {
		d := validDescriptor()
		d.Development = Development{"rust": {Enable: true}}
		assert.NoError(t, d.Validate())
	})

	t.Run("garbage profile rejected when enabled", func(t *testing.T) {
		d := validDescriptor()
		d.Development = Development{"rust": {Enable: true, Profile: "shiny"}}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profile")
	})

	t.Run("disabled toolchains are inert", func(t *testing.T) {
		d := validDescriptor()
		d.Development = Development{"rust": {Enable: false, Profile: "shiny"}}
		assert.NoError(t, d.Validate())
	})
}

func TestValidate_Packages(t *testing.T) {
	t.Run("empty list is valid", func(t *testing.T) {
		d := validDescriptor()
		d.Packages = nil
		assert.NoError(t, d.Validate())
	})

	t.Run("empty name rejected", func(t *testing.T) {
		d := validDescriptor()
		d.Packages = []string{"openssl", "  "}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "package name cannot be empty")
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		d := validDescriptor()
		d.Packages = []string{"openssl", "openssl"}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate package")
	})
}

func TestValidate_AggregatesErrors(t *testing.T) {
	d := &Descriptor{
		Platforms: []Platform{
			{Arch: "sparc64", OS: "freebsd"},
		},
		Development: Development{
			"rust": {Enable: true, Profile: "shiny"},
		},
		Packages: []string{"", "openssl", "openssl"},
	}

	err := d.Validate()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	// sparc64 + freebsd + profile + empty name + duplicate
	assert.Len(t, verr.Errors(), 5)
}
