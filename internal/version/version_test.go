package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetUsesLdflags(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	defer func() { Version, GitCommit = oldVersion, oldCommit }()

	Version = "1.2.3"
	GitCommit = "abc123"

	info := Get()
	if info.Version != "1.2.3" || info.GitCommit != "abc123" {
		t.Errorf("unexpected info %+v", info)
	}
	if String() != "1.2.3" {
		t.Errorf("String() = %q", String())
	}
}

func TestGetRuntimeFields(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if !strings.Contains(info.Platform, runtime.GOOS) {
		t.Errorf("Platform = %q", info.Platform)
	}
}
