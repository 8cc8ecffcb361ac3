// Package version provides information about the build version of the binaries
package version

import "runtime"

// BuildInfo holds version information about a binary build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Info returns the build information, the variables below are set with -ldflags
//
//	-X 'captchahub/internal/core/version.service=captchactl'
//	-X 'captchahub/internal/core/version.version=v0.3.0'
//	-X 'captchahub/internal/core/version.commit=abcd'
//	-X 'captchahub/internal/core/version.date=2026-03-01'
func Info() BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
	}
}

var (
	service = "captchad"
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
