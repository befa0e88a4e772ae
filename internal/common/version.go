package common

// Version information set at build time via ldflags
var (
	version   = "0.1.0"
	build     = "dev"
	gitCommit = "unknown"
)

// GetVersion returns the application version
func GetVersion() string {
	return version
}

// GetBuild returns the build identifier
func GetBuild() string {
	return build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return gitCommit
}
