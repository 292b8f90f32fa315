package version

import "runtime/debug"

// Set at build time with -ldflags "-X".
var (
	Version  = "dev"
	Revision = ""
	Branch   = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}

		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && Revision == "" {
				Revision = s.Value
			}
		}
	}

	if Revision == "" {
		Revision = "unknown"
	}
}

// GoVersion returns the Go version the binary was built with.
func GoVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}

	return "unknown"
}
