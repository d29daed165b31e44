package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 表示信号方向；模拟目前只处理 BUY。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 接受 buy/long/sell/short（大小写不敏感）。
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "LONG":
		return SideBuy, nil
	case "SELL", "SHORT":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", raw)
	}
}

// Signal 是上游策略层产出的入场建议，对模拟引擎只读。
type Signal struct {
	ID           string              `json:"id"`
	Symbol       string              `json:"symbol"`
	Side         Side                `json:"side"`
	Date         time.Time           `json:"date"`
	EntryPrice   decimal.Decimal     `json:"entry_price"`
	StopLoss     decimal.NullDecimal `json:"stop_loss"`
	Target       decimal.NullDecimal `json:"target"`
	Quantity     decimal.Decimal     `json:"quantity"`
	StrategyCode string              `json:"strategy_code"`
}

// Key 返回用于去重的标识；缺少 ID 时退化为 symbol@date/strategy。
func (s Signal) Key() string {
	if id := strings.TrimSpace(s.ID); id != "" {
		return id
	}
	return fmt.Sprintf("%s@%s/%s", strings.ToUpper(s.Symbol), s.Date.UTC().Format("2006-01-02"), s.StrategyCode)
}

// UnmarshalJSON 允许 date 使用 2006-01-02 或 RFC3339 两种格式。
func (s *Signal) UnmarshalJSON(data []byte) error {
	type alias Signal
	aux := struct {
		*alias
		Date string `json:"date"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := strings.TrimSpace(aux.Date)
	if raw == "" {
		return nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		s.Date = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("signal %s: invalid date %q", s.ID, raw)
	}
	s.Date = t
	return nil
}
