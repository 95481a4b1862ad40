package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManagerHashesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(dir, "app.js", "styles.css")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	a, ok := m.Get("app.js")
	if !ok {
		t.Fatal("app.js should be available")
	}
	// sha1 of "console.log(1)\n"
	if len(a.Hash) != 40 {
		t.Fatalf("hash len = %d", len(a.Hash))
	}
	urls := m.URLs()
	if got, want := urls["app.js"], "/static/app.js?v="+a.Hash; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}

	if _, ok := m.Get("styles.css"); ok {
		t.Fatal("missing styles.css reported available")
	}
	if got := urls["styles.css"]; got != "/static/styles.css" {
		t.Fatalf("missing URL = %q", got)
	}
	if len(urls) != 2 {
		t.Fatalf("URLs = %v", urls)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "styles.css")
	_ = os.WriteFile(p, []byte("a{}"), 0o644)
	m1, _ := NewManager(dir, "styles.css")
	_ = os.WriteFile(p, []byte("b{}"), 0o644)
	m2, _ := NewManager(dir, "styles.css")
	if m1.URLs()["styles.css"] == m2.URLs()["styles.css"] {
		t.Fatal("expected a new URL after the file changed")
	}
}
