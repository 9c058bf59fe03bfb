// Package rmvar provides the version number of a rustmailerctl build.
package rmvar

import (
	"runtime/debug"
	"strings"
)

// Version is set at runtime based on the Go module used to build.
var Version = "(devel)"

// VersionBare does not have a "+modifications" suffix.
var VersionBare = "(devel)"

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Version = buildInfo.Main.Version
	VersionBare = buildInfo.Main.Version
	if Version == "(devel)" {
		var vcsRev, vcsMod string
		for _, setting := range buildInfo.Settings {
			if setting.Key == "vcs.revision" {
				vcsRev = setting.Value
			} else if setting.Key == "vcs.modified" {
				vcsMod = setting.Value
			}
		}
		if vcsRev == "" {
			return
		}
		Version = vcsRev
		VersionBare = vcsRev
		switch vcsMod {
		case "false":
		case "true":
			Version += "+modifications"
		default:
			Version += "+unknown"
		}
	}
	Version = strings.TrimPrefix(Version, "v")
	VersionBare = strings.TrimPrefix(VersionBare, "v")
}
