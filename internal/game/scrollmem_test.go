package game

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScrollMemoryMissingReadsZero(t *testing.T) {
	m := NewScrollMemory(t.TempDir())
	if got := m.Read("is7"); got != 0 {
		t.Errorf("Read(missing) = %d, want 0", got)
	}
}

func TestScrollMemoryMonotonicity(t *testing.T) {
	m := NewScrollMemory(t.TempDir())

	if err := m.Write("is7", 12); err != nil {
		t.Fatal(err)
	}
	if got := m.Read("is7"); got != 12 {
		t.Fatalf("Read = %d, want 12", got)
	}

	// larger value never replaces a stored one
	if err := m.Write("is7", 20); err != nil {
		t.Fatal(err)
	}
	if got := m.Read("is7"); got != 12 {
		t.Errorf("Read after larger write = %d, want 12", got)
	}

	// smaller value tightens
	if err := m.Write("is7", 7); err != nil {
		t.Fatal(err)
	}
	if got := m.Read("is7"); got != 7 {
		t.Errorf("Read after smaller write = %d, want 7", got)
	}
}

func TestScrollMemoryZeroStoredIsReplaceable(t *testing.T) {
	m := NewScrollMemory(t.TempDir())

	if err := m.Write("fv4005", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Write("fv4005", 15); err != nil {
		t.Fatal(err)
	}
	if got := m.Read("fv4005"); got != 15 {
		t.Errorf("Read = %d, want 15 (zero does not pin)", got)
	}
}

func TestScrollMemoryInvalidFileReadsZero(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "is7.txt"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewScrollMemory(dir)
	if got := m.Read("is7"); got != 0 {
		t.Errorf("Read(garbage) = %d, want 0", got)
	}
}

func TestScrollMemoryNegativeClamped(t *testing.T) {
	m := NewScrollMemory(t.TempDir())
	if err := m.Write("is7", -5); err != nil {
		t.Fatal(err)
	}
	if got := m.Read("is7"); got != 0 {
		t.Errorf("Read = %d, want 0 after negative write", got)
	}
}
