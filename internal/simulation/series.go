package simulation

import (
	"iter"
	"sort"
	"time"

	"stratlab/internal/market"
	"stratlab/internal/pkg/symbol"

	"github.com/shopspring/decimal"
)

// Series 是单个标的按日期升序的 K 线，支持 O(1) 按日查找与"某日之后"的前向遍历。
type Series struct {
	candles []market.Candle
	index   map[time.Time]int
}

func NewSeries(candles []market.Candle) *Series {
	sorted := make([]market.Candle, 0, len(candles))
	for _, c := range candles {
		c.Date = market.Day(c.Date)
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	s := &Series{candles: sorted[:0], index: make(map[time.Time]int, len(sorted))}
	for _, c := range sorted {
		// 同一日期重复时保留先出现的一根
		if _, dup := s.index[c.Date]; dup {
			continue
		}
		s.index[c.Date] = len(s.candles)
		s.candles = append(s.candles, c)
	}
	return s
}

// IndexBySymbol 将多标的 K 线拆分为各自的 Series。
func IndexBySymbol(candles []market.Candle) map[string]*Series {
	grouped := make(map[string][]market.Candle)
	for _, c := range candles {
		key := symbol.Normalize(c.Symbol)
		grouped[key] = append(grouped[key], c)
	}
	out := make(map[string]*Series, len(grouped))
	for key, group := range grouped {
		out[key] = NewSeries(group)
	}
	return out
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candles)
}

func (s *Series) At(date time.Time) (market.Candle, bool) {
	if s == nil {
		return market.Candle{}, false
	}
	i, ok := s.index[market.Day(date)]
	if !ok {
		return market.Candle{}, false
	}
	return s.candles[i], true
}

// After 返回严格晚于 date 的 (日期, 收盘价) 序列；序列有限且可重复遍历。
func (s *Series) After(date time.Time) iter.Seq2[time.Time, decimal.Decimal] {
	if s == nil {
		return func(func(time.Time, decimal.Decimal) bool) {}
	}
	start := s.firstAfter(market.Day(date))
	return func(yield func(time.Time, decimal.Decimal) bool) {
		for i := start; i < len(s.candles); i++ {
			if !yield(s.candles[i].Date, s.candles[i].Close) {
				return
			}
		}
	}
}

func (s *Series) firstAfter(date time.Time) int {
	if i, ok := s.index[date]; ok {
		return i + 1
	}
	return sort.Search(len(s.candles), func(i int) bool { return s.candles[i].Date.After(date) })
}
