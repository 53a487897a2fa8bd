package version

var (
	// Version is the current application version.
	// Populated by the build system (ldflags); the fallback tracks the latest tag.
	Version = "v0.1.3"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
