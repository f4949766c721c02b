package tsa

import "runtime/debug"

const fallbackVersion = "devel"

// Version reports the module version stamped into the binary, or "devel"
// for builds outside module mode.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return fallbackVersion
	}
	return info.Main.Version
}
