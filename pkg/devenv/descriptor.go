// SPDX-License-Identifier: MIT

package devenv

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor is the declarative development-environment specification read
// by the external flake evaluator. It is authored once and never mutated;
// every consumer, including this package, only reads it.
type Descriptor struct {
	// Platforms lists the target platforms the evaluator should
	// materialize, in declaration order.
	Platforms []Platform `yaml:"platforms"`

	// Development holds the language toolchain records, keyed by
	// toolchain name (rust, go, zig, ...).
	Development Development `yaml:"development,omitempty"`

	// Packages names the packages made available in the environment.
	// Resolution against the package registry is the evaluator's job.
	Packages []string `yaml:"packages,omitempty"`
}

// Development maps a toolchain name to its record.
type Development map[string]Toolchain

// Toolchain is a single language toolchain toggle.
type Toolchain struct {
	// Enable turns the toolchain on for the environment.
	Enable bool `yaml:"enable"`

	// Profile selects the release channel (stable, beta, nightly,
	// latest) or an exact version. Empty means the evaluator's default.
	Profile string `yaml:"profile,omitempty"`
}

// Parse decodes a descriptor from YAML. Decoding is strict: unknown fields
// are rejected and the input must contain exactly one document.
func Parse(data []byte) (*Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("descriptor is empty")
		}
		return nil, fmt.Errorf("strict descriptor parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("descriptor contains multiple documents or trailing content")
	}

	return &d, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (*Descriptor, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported descriptor format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- descriptor paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	return Parse(data)
}

// Supports reports whether the descriptor declares the given platform.
func (d *Descriptor) Supports(p Platform) bool {
	for _, candidate := range d.Platforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// EnabledToolchains returns the names of all enabled toolchains, sorted.
func (d *Descriptor) EnabledToolchains() []string {
	var names []string
	for name, tc := range d.Development {
		if tc.Enable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
