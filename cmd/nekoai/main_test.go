package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_VersionFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, []string{"-version"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "NekoAI ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, []string{"-config", "/nonexistent/config.yaml"})
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run(context.Background(), &out, []string{"-config", path})
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("error = %v, want invalid config", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, []string{"-definitely-not-a-flag"}); err == nil {
		t.Error("expected flag parse error")
	}
}
