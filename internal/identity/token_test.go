package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForSourceDeterministic(t *testing.T) {
	a := ForSource("dQw4w9WgXcQ")
	b := ForSource("dQw4w9WgXcQ")
	if a != b {
		t.Fatalf("expected identical tokens, got %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-character token, got %d (%q)", len(a), a)
	}
	if other := ForSource("aaaaaaaaaaa"); other == a {
		t.Fatalf("expected distinct tokens for distinct ids")
	}
}

func TestForFileMatchesContent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.bin")
	second := filepath.Join(dir, "second.bin")
	if err := os.WriteFile(first, []byte("same payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(second, []byte("same payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tokenA, err := ForFile(first)
	if err != nil {
		t.Fatalf("ForFile: %v", err)
	}
	tokenB, err := ForFile(second)
	if err != nil {
		t.Fatalf("ForFile: %v", err)
	}
	if tokenA != tokenB {
		t.Fatalf("expected identical tokens for identical content, got %q and %q", tokenA, tokenB)
	}
	if len(tokenA) != 16 {
		t.Fatalf("expected 16-character token, got %q", tokenA)
	}
}

func TestForFileMissing(t *testing.T) {
	if _, err := ForFile(filepath.Join(t.TempDir(), "absent.bin")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
