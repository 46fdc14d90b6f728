package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time via -ldflags "-X github.com/milan604/httpcore/pkg/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
	Go      = runtime.Version()
)

// UserAgent is the default User-Agent of outgoing requests.
func UserAgent() string {
	return "httpcore/" + resolved()
}

// resolved falls back to the module version when ldflags were not used,
// which is the case for consumers importing this module.
func resolved() string {
	if Version != "dev" {
		return Version
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == "github.com/milan604/httpcore" && dep.Version != "" && dep.Version != "(devel)" {
			return dep.Version
		}
	}
	return Version
}

// Info returns version/build metadata suitable for logging.
func Info() map[string]string {
	return map[string]string{
		"version": resolved(),
		"commit":  Commit,
		"date":    Date,
		"go":      Go,
	}
}
