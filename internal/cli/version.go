package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Build metadata, stamped by -ldflags in release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo records the build metadata passed in from main.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

// formatVersion adds a v prefix to release versions.
func formatVersion(v string) string {
	if v == "" || v == "dev" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func printVersion(out io.Writer, short bool) {
	if short {
		fmt.Fprintln(out, version)
		return
	}
	fmt.Fprintf(out, "korasi %s\ncommit: %s\nbuilt: %s\ngo: %s\nos/arch: %s/%s\n",
		formatVersion(version), commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
