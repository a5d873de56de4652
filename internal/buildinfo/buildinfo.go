// Package buildinfo prints the version banner every streamcheck binary starts with.
package buildinfo

import (
	"fmt"
	"io"
)

// Set at link time, e.g.
//
//	go build -ldflags "-X github.com/and161185/streamcheck/internal/buildinfo.BuildVersion=v1.2.0"
var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildInfo writes the banner for app to w.
func PrintBuildInfo(w io.Writer, app string) {
	fmt.Fprintf(w, "%s\n", app)
	fmt.Fprintf(w, "Build version: %s\n", orNA(BuildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(BuildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(BuildCommit))
}
