package buildconfig

// Injected at build time via -ldflags on the psyche binary.
var (
	version = "dev"
	commit  = "unknown"
)

// Version returns the engine build version.
func Version() string {
	return version
}

// Commit returns the git commit the binary was built from.
func Commit() string {
	return commit
}

// VersionInfo bundles the build identifiers for status surfaces.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
