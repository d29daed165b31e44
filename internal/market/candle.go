package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle 是单个标的单个交易日的 OHLCV，(Symbol, Date) 唯一。
type Candle struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Validate 检查价格/成交量非负且日期有效。
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle symbol is required")
	}
	if c.Date.IsZero() {
		return fmt.Errorf("candle %s: date is required", c.Symbol)
	}
	for name, v := range map[string]decimal.Decimal{"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close} {
		if v.IsNegative() {
			return fmt.Errorf("candle %s@%s: negative %s %s", c.Symbol, FormatDate(c.Date), name, v)
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s@%s: negative volume %d", c.Symbol, FormatDate(c.Date), c.Volume)
	}
	return nil
}

// LastDate 返回升序序列中的最后日期。
func LastDate(candles []Candle) (time.Time, bool) {
	if len(candles) == 0 {
		return time.Time{}, false
	}
	return candles[len(candles)-1].Date, true
}
