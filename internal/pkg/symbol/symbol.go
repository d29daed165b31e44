package symbol

import (
	"sort"
	"strings"
)

// quoteCurrencies 用于从无分隔符的加密货币交易对（如 BTCUSDT）中拆出计价币。
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

// Pair 是加密货币交易对的拆分结果；股票代码没有 Quote。
type Pair struct {
	Base  string
	Quote string
}

// Normalize 返回内部统一使用的标的键：大写、去空白、去掉 ":USDT" 之类的结算后缀。
// 股票代码原样大写（AAPL），加密交易对保留斜杠形式（BTC/USDT）。
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.ReplaceAll(s, " ", "")
}

// ParsePair 仅在能识别计价币时返回 ok。
func ParsePair(s string) (Pair, bool) {
	s = Normalize(s)
	if s == "" {
		return Pair{}, false
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		if parts[0] == "" || parts[1] == "" {
			return Pair{}, false
		}
		return Pair{Base: parts[0], Quote: parts[1]}, true
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Pair{Base: s[:len(s)-len(quote)], Quote: quote}, true
		}
	}
	return Pair{}, false
}

// ToBinance 将 BTC/USDT 转为 BTCUSDT；无法识别的代码原样返回。
func ToBinance(s string) string {
	return strings.ReplaceAll(Normalize(s), "/", "")
}

// Equal 在忽略大小写与交易所格式差异的前提下比较两个代码。
func Equal(a, b string) bool {
	return ToBinance(a) == ToBinance(b)
}

// NormalizeList 去重并排序，空值被丢弃。
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}
