package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSystemPrompt_MissingFileUsesDefault(t *testing.T) {
	got := LoadSystemPrompt(filepath.Join(t.TempDir(), "absent.txt"), nil)
	if got != DefaultSystemPrompt {
		t.Errorf("got %q, want default", got)
	}
}

func TestLoadSystemPrompt_EmptyFileUsesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("  \n\t\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := LoadSystemPrompt(path, nil)
	if got != DefaultSystemPrompt {
		t.Errorf("got %q, want default", got)
	}
}

func TestLoadSystemPrompt_CustomPromptGetsMetadataFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("You are Neko, a catgirl assistant.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := LoadSystemPrompt(path, nil)
	if !strings.HasPrefix(got, "You are Neko, a catgirl assistant.") {
		t.Errorf("custom prompt lost: %q", got)
	}
	if !strings.Contains(got, "# format of metadata") {
		t.Error("metadata format section missing")
	}
	if !strings.Contains(got, "Channel: <category_name> > <channel_name> (<channel_id>)") {
		t.Error("metadata channel line missing")
	}
}
