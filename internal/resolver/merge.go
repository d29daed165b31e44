package resolver

import (
	"sort"
	"time"

	"stratlab/internal/market"
)

// Merge 以日期为键合并两路 K 线，primary 在日期冲突时总是优先；
// secondary 只补 primary 缺失的日期。返回按日期升序的新切片，不修改入参。
func Merge(primary, secondary []market.Candle) []market.Candle {
	byDate := make(map[time.Time]market.Candle, len(primary)+len(secondary))
	for _, c := range primary {
		d := market.Day(c.Date)
		if _, ok := byDate[d]; ok {
			continue
		}
		c.Date = d
		byDate[d] = c
	}
	for _, c := range secondary {
		d := market.Day(c.Date)
		if _, ok := byDate[d]; ok {
			continue
		}
		c.Date = d
		byDate[d] = c
	}
	if len(byDate) == 0 {
		return nil
	}
	out := make([]market.Candle, 0, len(byDate))
	for _, c := range byDate {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
