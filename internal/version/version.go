// Package version reports the build identity of chunkchain.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = ""
	BuildDate = "unknown"
	GoVersion = runtime.Version()

	// GitDirty is "true" when the working tree had local changes
	GitDirty = ""
)

// Info returns the release name: the git tag when present, else Version.
func Info() string {
	v := Version
	if GitTag != "" && GitTag != "unknown" {
		v = GitTag
	}
	if GitDirty == "true" && !strings.HasSuffix(v, "-dirty") {
		v += "-dirty"
	}
	return v
}

// ShortCommit returns at most the first seven characters of GitCommit, or
// "" when the commit is unknown.
func ShortCommit() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return ""
	}
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// Full returns Info with the short commit appended.
func Full() string {
	info := Info()
	if c := ShortCommit(); c != "" && !strings.Contains(info, c) {
		info += fmt.Sprintf(" (%s)", c)
	}
	return info
}

// BuildInfo is the JSON shape served by the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GitTag    string `json:"git_tag,omitempty"`
	GitDirty  bool   `json:"git_dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Info(),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		GitDirty:  GitDirty == "true",
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
}

// UserAgent is sent by the page fetcher.
func UserAgent() string {
	return fmt.Sprintf("chunkchain/%s", Info())
}
