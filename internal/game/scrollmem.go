package game

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ScrollMemory persists, per reward ID, how many scroll steps were
// needed to bring its icon into view. Values only ever tighten
// downward because list items drift toward the top over time.
type ScrollMemory struct {
	dir string
}

func NewScrollMemory(dir string) *ScrollMemory {
	return &ScrollMemory{dir: dir}
}

func (m *ScrollMemory) path(id string) string {
	return filepath.Join(m.dir, id+".txt")
}

// Read returns the remembered step count, or 0 when the file is
// missing or unparseable.
func (m *ScrollMemory) Read(id string) int {
	raw, err := os.ReadFile(m.path(id))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Write stores count for id. A previously stored nonzero value is
// only replaced when the new count is smaller.
func (m *ScrollMemory) Write(id string, count int) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	old := m.Read(id)
	val := count
	if old != 0 && old < count {
		val = old
	}
	if val < 0 {
		val = 0
	}
	return os.WriteFile(m.path(id), []byte(strconv.Itoa(val)), 0o644)
}
