package simulation

import (
	"iter"
	"time"

	"stratlab/internal/exitplan"
	"stratlab/internal/types"

	"github.com/shopspring/decimal"
)

// Exit 是一次模拟平仓的结果。
type Exit struct {
	Date   time.Time
	Price  decimal.Decimal
	Reason types.ExitReason
}

// FindExit 按规则在 closes（入场日之后的收盘价序列）上寻找第一个出场点。
// 返回 false 表示数据耗尽仍未出场，即持仓未平。
func FindExit(rule exitplan.ExitRule, sig types.Signal, closes iter.Seq2[time.Time, decimal.Decimal], holdingDays int) (Exit, bool) {
	switch rule {
	case exitplan.StopOrTarget:
		if !sig.StopLoss.Valid && !sig.Target.Valid {
			return lastClose(closes)
		}
		return firstMatch(closes, func(_ int, px decimal.Decimal) (types.ExitReason, bool) {
			if stopHit(sig, px) {
				return types.ExitReasonStopLoss, true
			}
			if targetHit(sig, px) {
				return types.ExitReasonTarget, true
			}
			return "", false
		})
	case exitplan.TimeOrStop:
		return firstMatch(closes, func(n int, px decimal.Decimal) (types.ExitReason, bool) {
			if stopHit(sig, px) {
				return types.ExitReasonStopLoss, true
			}
			// 第 holdingDays+1 根 K 线即持有期满后的首个交易日
			if n > holdingDays {
				return types.ExitReasonTime, true
			}
			return "", false
		})
	default:
		// StopOnly 与 UnmappedFallback
		if !sig.StopLoss.Valid {
			return Exit{}, false
		}
		return firstMatch(closes, func(_ int, px decimal.Decimal) (types.ExitReason, bool) {
			if stopHit(sig, px) {
				return types.ExitReasonStopLoss, true
			}
			return "", false
		})
	}
}

// firstMatch 的谓词收到从 1 开始的 K 线序号。
func firstMatch(closes iter.Seq2[time.Time, decimal.Decimal], hit func(n int, px decimal.Decimal) (types.ExitReason, bool)) (Exit, bool) {
	n := 0
	for date, px := range closes {
		n++
		if reason, ok := hit(n, px); ok {
			return Exit{Date: date, Price: px, Reason: reason}, true
		}
	}
	return Exit{}, false
}

func lastClose(closes iter.Seq2[time.Time, decimal.Decimal]) (Exit, bool) {
	var out Exit
	found := false
	for date, px := range closes {
		out = Exit{Date: date, Price: px, Reason: types.ExitReasonLastCandle}
		found = true
	}
	return out, found
}

func stopHit(sig types.Signal, px decimal.Decimal) bool {
	return sig.StopLoss.Valid && px.LessThanOrEqual(sig.StopLoss.Decimal)
}

func targetHit(sig types.Signal, px decimal.Decimal) bool {
	return sig.Target.Valid && px.GreaterThanOrEqual(sig.Target.Decimal)
}
