// SPDX-License-Identifier: MIT

// Package devenv models the declarative development-environment descriptor
// consumed by the conch flake evaluator.
//
// A descriptor declares target platforms, language toolchain toggles and
// the packages the environment provides:
//
//	platforms:
//	  - x86_64-linux
//	  - aarch64-darwin
//	development:
//	  rust:
//	    enable: true
//	    profile: stable
//	packages:
//	  - openssl
//	  - pkg-config
//
// The descriptor is immutable once authored: it is read once per evaluator
// invocation and has no lifecycle beyond that. This package parses and
// validates the schema and renders the flake.nix stanza handed to the
// evaluator. Everything behavioral - package resolution, cross-compilation,
// toolchain installation, environment activation - is the evaluator's
// domain and is intentionally absent here.
package devenv
