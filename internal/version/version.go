// Package version reports the build version of vigil and checks GitHub for newer releases.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/mrz1836/vigil/internal/version.Version=...".
//
//nolint:gochecknoglobals // Build-time injected values
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information. A binary installed with go install
// reports its module version when no ldflags were given.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if isDev(info.Version) && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		if info.Commit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// String returns a one-line description.
func (i Info) String() string {
	s := "vigil " + NormalizeVersion(i.Version)
	if isDev(i.Version) {
		s = "vigil dev"
	}
	if i.Commit != "" {
		s += fmt.Sprintf(" (%s)", shortCommit(i.Commit))
	}
	return s + " " + i.GoVersion + " " + i.Platform
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
