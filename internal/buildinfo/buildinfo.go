// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import "runtime"

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/region-matcher/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/region-matcher/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/region-matcher/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Info is the JSON shape served by the version endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build metadata. Version falls back to "dev".
func Get() Info {
	v := Version
	if v == "" {
		v = "dev"
	}
	return Info{
		Version:   v,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats the metadata for -version flags.
func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		short := i.Commit
		if len(short) > 7 {
			short = short[:7]
		}
		s += " (" + short + ")"
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return s + " " + i.GoVersion
}
