// Package version reports the pageforge build identity. The variables are
// set with -ldflags at release time and fall back to the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/conneroisu/pageforge/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     vcsSetting("vcs.modified") == "true",
	}
}

// GetVersion returns the release version, the module version, or
// "dev-<commit>" for untagged VCS builds.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	if rev := vcsSetting("vcs.revision"); len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if rev := vcsSetting("vcs.revision"); rev != "" {
		return rev
	}
	return "unknown"
}

// String renders the build info for the version command.
func (b BuildInfo) String() string {
	lines := []string{"pageforge " + b.Version}
	if b.GitCommit != "unknown" {
		commit := b.GitCommit
		if b.Dirty {
			commit += " (dirty)"
		}
		lines = append(lines, "commit:   "+commit)
	}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "built:    "+b.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, fmt.Sprintf("go:       %s %s", b.GoVersion, b.Platform))
	return strings.Join(lines, "\n")
}

func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// parseBuildTime accepts RFC3339 and a few common layouts, returning the
// zero time otherwise.
func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
