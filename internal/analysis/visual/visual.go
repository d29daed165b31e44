package visual

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"stratlab/internal/analysis/performance"
	"stratlab/internal/market"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/shopspring/decimal"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorEquity        = "#34d399"
	colorPeak          = "#fbbf24"
	colorDrawdown      = "#f87171"

	chartWidthPx     = 1200
	equityHeightPx   = 480
	drawdownHeightPx = 220
)

var decimalHundred = decimal.NewFromInt(100)

// RenderEquity 把权益曲线与回撤渲染成独立 HTML 页面。
func RenderEquity(w io.Writer, title string, s performance.Summary) error {
	if len(s.EquityCurve) == 0 {
		return fmt.Errorf("equity curve is empty")
	}
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)

	xAxis := make([]string, 0, len(s.EquityCurve)+1)
	equity := make([]opts.LineData, 0, len(s.EquityCurve)+1)
	peak := make([]opts.LineData, 0, len(s.EquityCurve)+1)
	dd := make([]opts.BarData, 0, len(s.EquityCurve)+1)

	xAxis = append(xAxis, "start")
	equity = append(equity, opts.LineData{Value: s.StartingCapital.InexactFloat64()})
	peak = append(peak, opts.LineData{Value: s.StartingCapital.InexactFloat64()})
	dd = append(dd, opts.BarData{Value: 0})
	for _, p := range s.EquityCurve {
		xAxis = append(xAxis, market.FormatDate(p.Date))
		equity = append(equity, opts.LineData{Value: p.Equity.Round(2).InexactFloat64()})
		peak = append(peak, opts.LineData{Value: p.Peak.Round(2).InexactFloat64()})
		dd = append(dd, opts.BarData{Value: p.Drawdown.Mul(decimalHundred).Round(2).InexactFloat64()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         strings.TrimSpace(title),
			Subtitle:      subtitle(s),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("Peak", peak, charts.WithLineStyleOpts(opts.LineStyle{Color: colorPeak, Width: 1, Type: "dashed"}))

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", drawdownHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("Drawdown", dd, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDrawdown}))

	page.AddCharts(line, bar)
	return page.Render(w)
}

// RenderEquityHTML 是 RenderEquity 的便捷版本。
func RenderEquityHTML(title string, s performance.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderEquity(&buf, title, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subtitle(s performance.Summary) string {
	return fmt.Sprintf("trades %d | win %s%% | pnl %s | max dd %s%%",
		s.TotalTrades,
		s.WinRate.Mul(decimalHundred).StringFixed(1),
		s.TotalPnL.StringFixed(2),
		s.MaxDrawdown.Mul(decimalHundred).StringFixed(2))
}
