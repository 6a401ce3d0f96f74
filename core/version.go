package core

// Build metadata, injected with ldflags:
//
//	go build -ldflags "-X crowdview/core.Version=$(git describe --tags --always) \
//	  -X crowdview/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X crowdview/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the JSON shape served by the status endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// GetBuildInfo returns the injected build metadata.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// GetVersionInfo formats the build metadata on one line, for example
// "v1.2.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
