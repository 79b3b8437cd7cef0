package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaultsLoad(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("challenge.not_found", nil)
	if err != nil || strings.TrimSpace(s) == "" {
		t.Fatalf("Render = %q, %v", s, err)
	}
}

func TestRenderWithData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("notice.opponent_disconnected", map[string]any{"Seconds": 30})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(s, "30") {
		t.Fatalf("rendered message missing seconds: %q", s)
	}
}

func TestMustRenderFallsBackToKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.MustRender("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("MustRender = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := []byte("challenge:\n  not_found: \"custom text\"\n")
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), override, 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := c.Render("challenge.not_found", nil)
	if err != nil || s != "custom text" {
		t.Fatalf("override not applied: %q, %v", s, err)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	body := []byte("game:\n  not_found: \"a\"\n")
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("duplicate keys across override files should fail")
	}
}
