package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"
)

const shortSHA = 7

// BuildInfo is injected by the build pipeline.
type BuildInfo struct {
	Version   string
	CommitSHA string
}

func (b BuildInfo) short() string {
	if len(b.CommitSHA) < shortSHA {
		return ""
	}
	return b.CommitSHA[:shortSHA]
}

// versionTemplate returns the Cobra version template: version, short commit,
// Go version and platform.
func versionTemplate(b BuildInfo) string {
	v := "{{.Name}} {{.Version}}"
	if sha := b.short(); sha != "" {
		v += " (" + sha + ")"
	}
	return v + fmt.Sprintf(" %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
}

// normalizeBuildInfo fills missing build vars from the module and VCS data
// the Go toolchain embeds.
func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}

	if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}

	vcs := map[string]string{}
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	if b.CommitSHA == "" {
		b.CommitSHA = vcs["vcs.revision"]
	}
	if b.Version == "" {
		b.Version = "dev"
		if sha := b.short(); sha != "" {
			b.Version += "-" + sha
		}
		if vcs["vcs.modified"] == "true" {
			b.Version += "-dirty"
		}
	}
	return b
}
