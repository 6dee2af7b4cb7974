package version

import "testing"

func TestGet(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime }()

	Version, GitSHA, BuildTime = "0.3.1", "abc1234", "2026-10-16T09:00:00Z"
	info := Get()
	if info.Version != "0.3.1" || info.GitSHA != "abc1234" || info.BuildTime != "2026-10-16T09:00:00Z" {
		t.Errorf("Get() = %+v", info)
	}
	if got, want := info.String(), "0.3.1 (abc1234, built 2026-10-16T09:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
