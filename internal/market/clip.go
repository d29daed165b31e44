package market

import (
	"time"

	"stratlab/internal/pkg/symbol"
)

// Clip 保留 [from, to] 内且 symbol 与 key 一致的 K 线，日期归一到 UTC 零点、Symbol 统一为 key。
// from 为零值表示不设下界。dropped 为 symbol 不匹配而被丢弃的条数。
func Clip(key string, candles []Candle, from, to time.Time) (out []Candle, dropped int) {
	if len(candles) == 0 {
		return nil, 0
	}
	from, to = Day(from), Day(to)
	out = make([]Candle, 0, len(candles))
	for _, c := range candles {
		d := Day(c.Date)
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}
		if c.Symbol != "" && !symbol.Equal(c.Symbol, key) {
			dropped++
			continue
		}
		c.Symbol = key
		c.Date = d
		out = append(out, c)
	}
	return out, dropped
}

// HasWeekday 判断 [from, to] 是否包含周一至周五；只含周末的区间对股票没有新的日线。
func HasWeekday(from, to time.Time) bool {
	from, to = Day(from), Day(to)
	for d, n := from, 0; !d.After(to) && n < 7; d, n = d.AddDate(0, 0, 1), n+1 {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return true
		}
	}
	return false
}
