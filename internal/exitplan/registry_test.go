package exitplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	cases := map[string]ExitRule{
		"stop-or-target": StopOrTarget,
		" STOP_ONLY ":    StopOnly,
		"time-or-stop":   TimeOrStop,
	}
	for raw, want := range cases {
		got, err := ParseRule(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseRule("unmapped-fallback")
	assert.Error(t, err)
}

func TestDefaultTableLookup(t *testing.T) {
	table := DefaultTable()

	rule, ok := table.Lookup("stop-or-target")
	assert.True(t, ok)
	assert.Equal(t, StopOrTarget, rule)

	rule, ok = table.Lookup("BREAKOUT")
	assert.True(t, ok)
	assert.Equal(t, StopOrTarget, rule, "several codes share stop-or-target")

	rule, ok = table.Lookup("time_or_stop")
	assert.True(t, ok)
	assert.Equal(t, TimeOrStop, rule)

	rule, ok = table.Lookup("no-such-strategy")
	assert.False(t, ok)
	assert.Equal(t, UnmappedFallback, rule)
}

func TestTableMergeOverrides(t *testing.T) {
	table := DefaultTable().Merge(map[string]ExitRule{"Breakout": StopOnly, "pairs": TimeOrStop})
	rule, _ := table.Lookup("breakout")
	assert.Equal(t, StopOnly, rule)
	rule, ok := table.Lookup("pairs")
	assert.True(t, ok)
	assert.Equal(t, TimeOrStop, rule)
	assert.Contains(t, table.Codes(), "pairs")
	assert.Equal(t, "time-or-stop", table.Entries()["pairs"])
}

func writeRules(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "exit_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRegistryLoadsFile(t *testing.T) {
	path := writeRules(t, t.TempDir(), "strategies:\n  vcp: stop-only\n  momentum: time-or-stop\n")
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	rule, ok := reg.Lookup("VCP")
	assert.True(t, ok)
	assert.Equal(t, StopOnly, rule)
	rule, _ = reg.Lookup("momentum")
	assert.Equal(t, TimeOrStop, rule)
	rule, _ = reg.Lookup("breakout")
	assert.Equal(t, StopOrTarget, rule, "built-in codes survive")
	assert.Equal(t, int64(1), reg.Snapshot().Version)
}

func TestRegistryReloadBumpsVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, "strategies:\n  vcp: stop-only\n")
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	writeRules(t, dir, "strategies:\n  vcp: stop-or-target\n")
	require.NoError(t, reg.reload())
	rule, _ := reg.Lookup("vcp")
	assert.Equal(t, StopOrTarget, rule)
	assert.GreaterOrEqual(t, reg.Snapshot().Version, int64(2))
}

func TestRegistryRejectsInvalidFiles(t *testing.T) {
	t.Run("unknown rule", func(t *testing.T) {
		path := writeRules(t, t.TempDir(), "strategies:\n  vcp: trailing-stop\n")
		_, err := NewRegistry(path)
		assert.ErrorContains(t, err, "invalid")
	})
	t.Run("unknown top-level field", func(t *testing.T) {
		path := writeRules(t, t.TempDir(), "strategies:\n  vcp: stop-only\nholding: 3\n")
		_, err := NewRegistry(path)
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := NewRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestRegistryWithoutPathUsesDefaults(t *testing.T) {
	reg, err := NewRegistry("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable().Len(), reg.Snapshot().Table.Len())
}
