package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/types"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSignalsAcceptsArrayAndObject(t *testing.T) {
	dir := t.TempDir()
	arr := filepath.Join(dir, "arr.json")
	require.NoError(t, os.WriteFile(arr, []byte(`[{"id":"a","symbol":"AAPL","side":"BUY","date":"2024-03-04","entry_price":"100","quantity":"10","strategy_code":"breakout"}]`), 0o644))
	got, err := readSignals(arr)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "2024-03-04", got[0].Date.Format("2006-01-02"))

	obj := filepath.Join(dir, "obj.json")
	require.NoError(t, os.WriteFile(obj, []byte(`{"signals":[]}`), 0o644))
	got, err = readSignals(obj)
	require.NoError(t, err)
	assert.Empty(t, got)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"rows":[]}`), 0o644))
	_, err = readSignals(bad)
	assert.Error(t, err)
}

func TestWindowFlags(t *testing.T) {
	w := windowFlags{from: "2024-03-01", to: "2024-03-10"}
	from, to, err := w.parse()
	require.NoError(t, err)
	assert.True(t, from.Before(to))

	w = windowFlags{from: "2024-03-10", to: "2024-03-01"}
	_, _, err = w.parse()
	assert.Error(t, err)

	w = windowFlags{to: "10/03/2024"}
	_, _, err = w.parse()
	assert.Error(t, err)
}

func TestResolveConfigPathPrefersFlag(t *testing.T) {
	t.Setenv("STRATLAB_CONFIG", "/env/config.yaml")
	assert.Equal(t, "/flag.yaml", resolveConfigPath(" /flag.yaml "))
	assert.Equal(t, "/env/config.yaml", resolveConfigPath(""))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "resolve", "backtest", "sync"} {
		assert.True(t, names[want], want)
	}
}

func TestPrintRunListsTrades(t *testing.T) {
	entry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	run := backtest.Run{
		ID:     "run-1",
		Status: backtest.RunStatusDone,
		Trades: []types.SimulatedTrade{
			{SignalID: "a", Symbol: "AAPL", EntryDate: entry, ExitDate: entry.AddDate(0, 0, 4),
				PnL: decimal.NewNullDecimal(decimal.NewFromInt(-60)), ExitReason: types.ExitReasonStopLoss},
			{SignalID: "b", Symbol: "MSFT", EntryDate: entry, ExitDate: entry.AddDate(0, 0, 1)},
		},
	}
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	printRun(cmd, run)

	out := buf.String()
	assert.Contains(t, out, "run run-1 (done)")
	assert.Contains(t, out, "trade a AAPL 2024-03-01 -> 2024-03-05 held=4d pnl=-60.00 [stop_loss]")
	assert.Contains(t, out, "trade b MSFT 2024-03-01 -> 2024-03-02 held=1d pnl=n/a")
}
