package main

import (
	"runtime/debug"

	"github.com/marcus/kb/cmd"
)

// Version is set at release time with -ldflags "-X main.Version=...".
var Version = "dev"

// buildVersion falls back to module or VCS info for untagged builds.
func buildVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		return mv
	}

	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	v = "devel+" + rev[:min(len(rev), 12)]
	if dirty {
		v += "+dirty"
	}
	return v
}

func main() {
	cmd.SetVersion(buildVersion(Version))
	cmd.Execute()
}
