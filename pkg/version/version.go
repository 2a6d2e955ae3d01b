package version

import "runtime/debug"

// Set via -ldflags "-X github.com/vinodismyname/ritualstats/pkg/version.version=v1.2.3".
var (
	version = "dev"
	commit  = ""
)

// Version returns the module version from build info when the binary was
// installed with go install, else the ldflags value.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// Commit returns the VCS revision recorded at build time, if any.
func Commit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return ""
}

// String renders "v1.2.3 (abc1234)" for --version output.
func String() string {
	if c := Commit(); c != "" {
		return Version() + " (" + c + ")"
	}
	return Version()
}
