package gormstore

import (
	"time"

	"stratlab/internal/market"
	"stratlab/internal/pkg/symbol"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// candleModel 以文本保存价格，避免 REAL 列带来的精度漂移。
type candleModel struct {
	Symbol    string          `gorm:"column:symbol;primaryKey;size:32"`
	Date      datatypes.Date  `gorm:"column:date;primaryKey"`
	Open      decimal.Decimal `gorm:"column:open;type:text;not null"`
	High      decimal.Decimal `gorm:"column:high;type:text;not null"`
	Low       decimal.Decimal `gorm:"column:low;type:text;not null"`
	Close     decimal.Decimal `gorm:"column:close;type:text;not null"`
	Volume    int64           `gorm:"column:volume;not null;default:0"`
	Source    string          `gorm:"column:source;size:32"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (candleModel) TableName() string { return "candles" }

func newCandleModel(c market.Candle, source string, now time.Time) candleModel {
	return candleModel{
		Symbol:    symbol.Normalize(c.Symbol),
		Date:      datatypes.Date(market.Day(c.Date)),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Source:    source,
		UpdatedAt: now,
	}
}

func (m candleModel) toCandle() market.Candle {
	return market.Candle{
		Symbol: m.Symbol,
		Date:   market.Day(time.Time(m.Date)),
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
}
