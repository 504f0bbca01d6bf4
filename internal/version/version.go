// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/smazurov/camwatch/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata reported by the API and `camwatch --version`.
type Info struct {
	Version   string `json:"version" doc:"Release version"`
	GitCommit string `json:"git_commit" doc:"Source revision"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Platform  string `json:"platform" doc:"GOOS/GOARCH"`
}

// Get returns the build metadata. When the binary was built without ldflags the
// VCS stamp embedded by the Go toolchain fills in the commit and date.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}

// UserAgent identifies camwatch to HTTP and broker peers.
func UserAgent() string {
	return "camwatch/" + Version
}
