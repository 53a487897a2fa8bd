// SPDX-License-Identifier: MIT

package devenv

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mibmo/freestuffapi-go/internal/validate"
)

// Release channels understood by the evaluator's toolchain overlays.
var knownProfiles = []string{"stable", "beta", "nightly", "latest"}

// Validate checks the descriptor for schema validity: at least one
// platform, no duplicate platforms or packages, well-formed identifiers and
// profiles. It deliberately stops there. Package resolution, platform
// cross-compilation, toolchain installation and environment activation all
// belong to the external evaluator, which reports its own errors.
func (d *Descriptor) Validate() error {
	v := validate.New()

	if len(d.Platforms) == 0 {
		v.AddError("platforms", "at least one platform is required", nil)
	}

	seenPlatforms := make(map[string]struct{}, len(d.Platforms))
	for i, p := range d.Platforms {
		field := fmt.Sprintf("platforms[%d]", i)

		if !knownArch(p.Arch) {
			v.AddError(field, fmt.Sprintf("unknown architecture %q (known: %v)", p.Arch, knownArches), p.String())
		}
		if !knownOS(p.OS) {
			v.AddError(field, fmt.Sprintf("unknown operating system %q (known: %v)", p.OS, knownOSes), p.String())
		}

		if _, dup := seenPlatforms[p.String()]; dup {
			v.AddError(field, fmt.Sprintf("duplicate platform %q", p.String()), p.String())
		}
		seenPlatforms[p.String()] = struct{}{}
	}

	for name, tc := range d.Development {
		field := "development." + name

		if strings.TrimSpace(name) == "" {
			v.AddError("development", "toolchain name cannot be empty", name)
			continue
		}
		if strings.ContainsAny(name, " \t") {
			v.AddError(field, "toolchain name cannot contain whitespace", name)
		}

		// Disabled records are inert; only enabled toolchains need a
		// resolvable profile.
		if tc.Enable && tc.Profile != "" && !validProfile(tc.Profile) {
			v.AddError(field+".profile",
				fmt.Sprintf("profile must be one of %v or an exact version, got %q", knownProfiles, tc.Profile),
				tc.Profile)
		}
	}

	seenPackages := make(map[string]struct{}, len(d.Packages))
	for i, pkg := range d.Packages {
		field := fmt.Sprintf("packages[%d]", i)

		if strings.TrimSpace(pkg) == "" {
			v.AddError(field, "package name cannot be empty", pkg)
			continue
		}
		if _, dup := seenPackages[pkg]; dup {
			v.AddError(field, fmt.Sprintf("duplicate package %q", pkg), pkg)
		}
		seenPackages[pkg] = struct{}{}
	}

	return v.Err()
}

// validProfile accepts a release channel or anything that parses as a
// version (1.75, 1.75.0, go toolchain style 1.22.4).
func validProfile(profile string) bool {
	for _, channel := range knownProfiles {
		if profile == channel {
			return true
		}
	}
	_, err := semver.NewVersion(profile)
	return err == nil
}
