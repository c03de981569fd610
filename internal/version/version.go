package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/go-authgate/idgate/internal/version.Version=..."
var (
	App       = "idgate"
	Version   string
	GitCommit string
	BuildTime string
	BuildOS   = runtime.GOOS
	BuildArch = runtime.GOARCH
)

// String returns "<app> <version>" with the short commit appended when known.
func String() string {
	if commit := shortCommit(); commit != "" {
		return fmt.Sprintf("%s %s (%s)", App, current(), commit)
	}
	return App + " " + current()
}

// PrintVersion prints the build details for the -v flag.
func PrintVersion() {
	fmt.Println(String())
	if BuildTime != "" {
		fmt.Printf("Build time: %s\n", BuildTime)
	}
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("Built for: %s/%s\n", BuildOS, BuildArch)
}

// current falls back to the module version recorded by "go install".
func current() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func shortCommit() string {
	commit := GitCommit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
