// Package version provides build-time version information for soundrelay.
//
// The variables below are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/soundrelay/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/soundrelay/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/soundrelay/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags.
var (
	// Version is the semantic version following SemVer 2.0.0.
	// Prerelease builds use "1.2.3-SNAPSHOT.abc1234".
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"

	// Branch is the git branch the build was made from.
	Branch = "unknown"

	// TreeState is "clean" or "dirty".
	TreeState = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "soundrelay"

const shortSHALength = 8

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	CommitSHA string `json:"commit_sha"`
	Date      string `json:"date"`
	Branch    string `json:"branch"`
	TreeState string `json:"tree_state"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Platform  string `json:"platform"`
}

// GetInfo returns all version information as a structured type.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		CommitSHA: shortCommit(),
		Date:      Date,
		Branch:    Branch,
		TreeState: TreeState,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() string {
	if Commit == "unknown" || len(Commit) < shortSHALength {
		return ""
	}
	return Commit[:shortSHALength]
}

// commitLabel is the short commit with a "*" suffix for dirty trees.
func commitLabel() string {
	sha := shortCommit()
	if sha != "" && TreeState == "dirty" {
		return sha + "*"
	}
	return sha
}

// String returns a human-readable version string.
func String() string {
	info := GetInfo()
	label := commitLabel()
	if label == "" {
		return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
	}

	parts := []string{"commit: " + label}
	if Branch != "unknown" && Branch != "" {
		parts = append(parts, "branch: "+Branch)
	}
	parts = append(parts, "built: "+info.Date, info.GoVersion, info.Platform)
	return fmt.Sprintf("%s version %s (%s)", ApplicationName, info.Version, strings.Join(parts, ", "))
}

// Short returns a short version string for cobra's --version output,
// which already prints the application name.
func Short() string {
	if label := commitLabel(); label != "" {
		return fmt.Sprintf("%s (%s)", Version, label)
	}
	return Version
}

// JSON returns the version information as indented JSON.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ServerHeader returns the value for the HTTP Server response header.
func ServerHeader() string {
	return ApplicationName + "/" + Version
}

// IsSnapshot returns true if this is a snapshot/prerelease build.
func IsSnapshot() bool {
	return Version == "dev" || strings.Contains(Version, "-SNAPSHOT")
}

// IsRelease returns true if this is a tagged release build.
func IsRelease() bool {
	return !IsSnapshot()
}
