package performance

import (
	"testing"
	"time"

	"stratlab/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func trade(id string, exitOffset int, pnl string) types.SimulatedTrade {
	t := types.SimulatedTrade{
		SignalID:  id,
		Symbol:    "AAPL",
		EntryDate: base,
		ExitDate:  base.AddDate(0, 0, exitOffset),
	}
	if pnl != "" {
		t.PnL = decimal.NewNullDecimal(decimal.RequireFromString(pnl))
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarizeEquityCurveAndDrawdown(t *testing.T) {
	trades := []types.SimulatedTrade{
		trade("a", 1, "5000"),
		trade("b", 2, "-2000"),
		trade("c", 3, "3000"),
	}
	s := Summarize(trades, dec("100000"))

	require.Len(t, s.EquityCurve, 3)
	wantEquity := []string{"105000", "103000", "106000"}
	wantPeak := []string{"105000", "105000", "106000"}
	for i, p := range s.EquityCurve {
		assert.True(t, p.Equity.Equal(dec(wantEquity[i])), "equity[%d]=%s", i, p.Equity)
		assert.True(t, p.Peak.Equal(dec(wantPeak[i])), "peak[%d]=%s", i, p.Peak)
	}
	assert.Equal(t, "0.0190", s.MaxDrawdown.StringFixed(4))
	assert.True(t, s.TotalPnL.Equal(dec("6000")))
	assert.Equal(t, "0.6667", s.WinRate.StringFixed(4))
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.True(t, s.FinalEquity.Equal(dec("106000")))
	assert.True(t, s.ReturnPct.Equal(dec("0.06")))
}

func TestSummarizeSortsByExitDateStable(t *testing.T) {
	trades := []types.SimulatedTrade{
		trade("late", 5, "100"),
		trade("same1", 2, "-50"),
		trade("same2", 2, "20"),
	}
	s := Summarize(trades, dec("1000"))
	require.Len(t, s.EquityCurve, 3)
	assert.True(t, s.EquityCurve[0].Equity.Equal(dec("950")))
	assert.True(t, s.EquityCurve[1].Equity.Equal(dec("970")))
	assert.True(t, s.EquityCurve[2].Equity.Equal(dec("1070")))
	assert.Equal(t, s.EquityCurve[0].Date, s.EquityCurve[1].Date)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, decimal.Zero)
	assert.Equal(t, 0, s.TotalTrades)
	assert.True(t, s.WinRate.IsZero())
	assert.Empty(t, s.EquityCurve)
	assert.True(t, s.StartingCapital.Equal(DefaultStartingCapital()))
	assert.True(t, s.FinalEquity.Equal(DefaultStartingCapital()))
}

func TestSummarizeAllWinners(t *testing.T) {
	s := Summarize([]types.SimulatedTrade{trade("a", 1, "1"), trade("b", 2, "2")}, dec("10"))
	assert.True(t, s.WinRate.Equal(decimal.NewFromInt(1)))
	assert.True(t, s.MaxDrawdown.IsZero())
}

func TestSummarizeNullPnL(t *testing.T) {
	s := Summarize([]types.SimulatedTrade{trade("a", 1, "10"), trade("b", 2, "")}, dec("100"))
	assert.Equal(t, 2, s.TotalTrades)
	assert.True(t, s.TotalPnL.Equal(dec("10")))
	assert.Len(t, s.EquityCurve, 1)
	assert.True(t, s.WinRate.Equal(dec("0.5")))
}

func TestDrawdownBoundsAndPeakMonotonic(t *testing.T) {
	trades := []types.SimulatedTrade{
		trade("a", 1, "-40"),
		trade("b", 2, "-80"),
		trade("c", 3, "150"),
		trade("d", 4, "-30"),
	}
	s := Summarize(trades, dec("100"))
	require.Len(t, s.EquityCurve, 4)
	prevPeak := s.StartingCapital
	for _, p := range s.EquityCurve {
		assert.True(t, p.Peak.GreaterThanOrEqual(prevPeak))
		assert.False(t, p.Drawdown.IsNegative())
		assert.True(t, p.Drawdown.LessThanOrEqual(decimal.NewFromInt(1)))
		prevPeak = p.Peak
	}
	// equity goes to -20 against a peak of 100: clipped at 1
	assert.True(t, s.MaxDrawdown.Equal(decimal.NewFromInt(1)))
}

func TestDefaultStartingCapitalIsFresh(t *testing.T) {
	a := DefaultStartingCapital()
	a = a.Add(decimal.NewFromInt(1))
	assert.True(t, DefaultStartingCapital().Equal(decimal.NewFromInt(DefaultStartingCapitalUnits)))
	assert.False(t, a.Equal(DefaultStartingCapital()))
}
