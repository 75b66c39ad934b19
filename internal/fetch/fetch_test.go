package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/midorin-Linux/NekoAI/internal/tools"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Release Notes</title>
  <script>console.log("tracking")</script>
  <style>body { color: red }</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <h1>Version 2.0</h1>
  <p>This release adds   streaming support.</p>
  <ul><li>Faster startup</li><li>Smaller binary</li></ul>
  <footer>Copyright 2026</footer>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	title, content := extractHTML(samplePage)

	if title != "Release Notes" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"Version 2.0", "streaming support", "Faster startup"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
	for _, boiler := range []string{"console.log", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(content, boiler) {
			t.Errorf("content kept boilerplate %q:\n%s", boiler, content)
		}
	}
	if strings.Contains(content, "  ") {
		t.Errorf("whitespace not collapsed:\n%q", content)
	}
}

func TestCleanWhitespace(t *testing.T) {
	in := "a   b\n\n\n\nc\n   \nd"
	got := cleanWhitespace(in)
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank runs survive: %q", got)
	}
	if !strings.HasPrefix(got, "a b") {
		t.Errorf("inner spaces not collapsed: %q", got)
	}
}

func TestFetch_HTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := New()
	title, content, err := f.Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if title != "Release Notes" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(content, "Version 2.0") {
		t.Errorf("content = %q", content)
	}
}

func TestFetch_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("just some text"))
	}))
	defer srv.Close()

	f := New()
	title, content, err := f.Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if title != "" || content != "just some text" {
		t.Errorf("got (%q, %q)", title, content)
	}
}

func TestFetch_TruncatesToMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("é", 500)))
	}))
	defer srv.Close()

	f := New()
	_, content, err := f.Fetch(context.Background(), srv.URL, 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n := utf8.RuneCountInString(content); n != 100 {
		t.Errorf("content has %d runes, want 100", n)
	}
	if !utf8.ValidString(content) {
		t.Error("truncation split a rune")
	}
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New()
	if _, _, err := f.Fetch(context.Background(), srv.URL, 0); err == nil {
		t.Error("expected error on 404")
	}
}

func TestFetch_BinaryContentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0xff, 0xfe, 0x00, 0x01})
	}))
	defer srv.Close()

	f := New()
	if _, _, err := f.Fetch(context.Background(), srv.URL, 0); err == nil {
		t.Error("expected error for binary content")
	}
}

func TestRegisterTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Page</title></head><body><p>body text</p></body></html>`))
	}))
	defer srv.Close()

	r := tools.NewRegistry(0, nil)
	RegisterTool(r, New())

	if r.Get("fetch_webpage") == nil {
		t.Fatal("fetch_webpage not registered")
	}

	out := r.Execute(context.Background(), "fetch_webpage", `{"url":"`+srv.URL+`"}`)
	if !strings.Contains(out, "Title: Page") || !strings.Contains(out, "body text") {
		t.Errorf("tool output = %q", out)
	}

	// Missing url becomes a textual error payload.
	out = r.Execute(context.Background(), "fetch_webpage", `{}`)
	if !strings.Contains(out, `"error"`) {
		t.Errorf("missing url produced %q", out)
	}
}
