// SPDX-License-Identifier: MIT

// devenv is a CLI tool to validate devenv descriptor files and render the
// flake.nix stanza the conch evaluator consumes.
//
// Usage:
//
//	devenv -f devenv.yaml
//	devenv --file devenv.yaml -platforms
//	devenv -f devenv.yaml -flake flake.nix
//
// Exit codes:
//   - 0: Descriptor is valid
//   - 1: Descriptor is invalid (parse or validation error)
//   - 2: Usage error (missing required flag)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mibmo/freestuffapi-go/internal/version"
	"github.com/mibmo/freestuffapi-go/pkg/devenv"
)

func main() {
	var file string
	var flakeOut string
	var showPlatforms bool
	var showVersion bool

	flag.StringVar(&file, "file", "", "path to devenv descriptor file")
	flag.StringVar(&file, "f", "", "path to devenv descriptor file (shorthand)")
	flag.StringVar(&flakeOut, "flake", "", "render flake.nix to this path (\"-\" for stdout)")
	flag.BoolVar(&showPlatforms, "platforms", false, "list declared platforms and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Version)
		os.Exit(0)
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  devenv -f devenv.yaml")
		fmt.Fprintln(os.Stderr, "  devenv -f devenv.yaml -platforms")
		fmt.Fprintln(os.Stderr, "  devenv -f devenv.yaml -flake flake.nix")
		os.Exit(2)
	}

	// Load descriptor (uses strict YAML parsing)
	d, err := devenv.Load(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Descriptor error in %s:\n", file)
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	// Validate descriptor (schema validation)
	if err := d.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation error in %s:\n", file)
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	if showPlatforms {
		current := devenv.CurrentPlatform()
		for _, p := range d.Platforms {
			marker := " "
			if p == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, p)
		}
		if !d.Supports(current) {
			fmt.Fprintf(os.Stderr, "note: current platform %s is not declared\n", current)
		}
		os.Exit(0)
	}

	if flakeOut == "-" {
		if err := d.RenderFlake(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Flake render error:\n  %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if flakeOut != "" {
		if err := d.WriteFlake(flakeOut); err != nil {
			fmt.Fprintf(os.Stderr, "Flake write error:\n  %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ wrote %s\n", flakeOut)
		os.Exit(0)
	}

	fmt.Printf("✓ %s is valid\n", file)
}
