package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalUnmarshalDateOnly(t *testing.T) {
	raw := `{"id":"s1","symbol":"AAPL","side":"BUY","date":"2024-01-02","entry_price":"100",
		"stop_loss":"95","target":null,"quantity":"10","strategy_code":"stop-or-target"}`
	var sig Signal
	require.NoError(t, json.Unmarshal([]byte(raw), &sig))

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), sig.Date)
	assert.Equal(t, "100", sig.EntryPrice.String())
	assert.True(t, sig.StopLoss.Valid)
	assert.False(t, sig.Target.Valid)
	assert.Equal(t, SideBuy, sig.Side)
}

func TestSignalUnmarshalRejectsBadDate(t *testing.T) {
	var sig Signal
	err := json.Unmarshal([]byte(`{"id":"x","date":"02/01/2024"}`), &sig)
	assert.ErrorContains(t, err, "invalid date")
}

func TestSignalKeyFallback(t *testing.T) {
	sig := Signal{Symbol: "msft", Date: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), StrategyCode: "BREAKOUT"}
	assert.Equal(t, "MSFT@2024-05-01/BREAKOUT", sig.Key())
	sig.ID = "abc"
	assert.Equal(t, "abc", sig.Key())
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("long")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)
	_, err = ParseSide("hold")
	assert.Error(t, err)
}
