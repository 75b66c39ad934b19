package buildinfo

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	for _, key := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch", "uptime"} {
		if info[key] == "" {
			t.Errorf("Info() missing %q", key)
		}
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "NekoAI/") {
		t.Errorf("UserAgent() = %q", ua)
	}
	if !strings.Contains(ua, Version) {
		t.Errorf("UserAgent() %q missing version %q", ua, Version)
	}
}
