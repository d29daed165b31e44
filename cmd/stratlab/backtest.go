package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"stratlab/internal/analysis/visual"
	"stratlab/internal/backtest"
	"stratlab/internal/types"

	"github.com/spf13/cobra"
)

func newBacktestCmd(opts *rootOptions) *cobra.Command {
	var (
		signalsPath string
		req         backtest.RunRequest
		htmlPath    string
		pngPath     string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate a signal file against resolved candles and persist the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			signals, err := readSignals(signalsPath)
			if err != nil {
				return err
			}
			req.Signals = signals
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			run, err := a.Components().Backtests.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if htmlPath != "" {
				if err := writeEquityHTML(htmlPath, run); err != nil {
					return err
				}
			}
			if pngPath != "" {
				png, err := visual.RenderEquityPNG(cmd.Context(), "Backtest "+run.ID, run.Summary)
				if err != nil {
					return fmt.Errorf("render png: %w", err)
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), run)
			}
			printRun(cmd, run)
			return nil
		},
	}
	cmd.Flags().StringVar(&signalsPath, "signals", "", "JSON file with an array of signals")
	cmd.Flags().StringVar(&req.From, "from", "", "start date YYYY-MM-DD (default: earliest signal)")
	cmd.Flags().StringVar(&req.To, "to", "", "end date YYYY-MM-DD (default: today)")
	cmd.Flags().Float64Var(&req.StartingCapital, "capital", 0, "starting capital (default: analytics.starting_capital)")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "free-form notes stored with the run")
	cmd.Flags().StringVar(&htmlPath, "html", "", "write an equity/drawdown chart to this file")
	cmd.Flags().StringVar(&pngPath, "png", "", "write the chart as PNG (requires a local Chrome)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run as JSON")
	_ = cmd.MarkFlagRequired("signals")
	return cmd
}

// readSignals 接受信号数组，或带 signals 字段的对象。
func readSignals(path string) ([]types.Signal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Signals []types.Signal `json:"signals"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if wrapped.Signals == nil {
			return nil, fmt.Errorf("%s: missing signals", path)
		}
		return wrapped.Signals, nil
	}
	var signals []types.Signal
	if err := json.Unmarshal(raw, &signals); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if signals == nil {
		signals = []types.Signal{}
	}
	return signals, nil
}

func writeEquityHTML(path string, run backtest.Run) error {
	page, err := visual.RenderEquityHTML("Backtest "+run.ID, run.Summary)
	if err != nil {
		return err
	}
	return os.WriteFile(path, page, 0o644)
}

func printRun(cmd *cobra.Command, run backtest.Run) {
	out := cmd.OutOrStdout()
	s := run.Summary
	fmt.Fprintf(out, "run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(out, "  signals=%d trades=%d skipped=%d warnings=%d\n",
		run.Report.Signals, run.Report.Trades, len(run.Report.Skipped), len(run.Report.Warnings))
	fmt.Fprintf(out, "  win rate=%s total pnl=%s max drawdown=%s\n",
		s.WinRate.StringFixed(4), s.TotalPnL.StringFixed(2), s.MaxDrawdown.StringFixed(4))
	fmt.Fprintf(out, "  capital %s -> %s (%s)\n",
		s.StartingCapital.StringFixed(2), s.FinalEquity.StringFixed(2), s.ReturnPct.StringFixed(4))
	for _, tr := range run.Trades {
		pnl := "n/a"
		if tr.PnL.Valid {
			pnl = tr.PnL.Decimal.StringFixed(2)
		}
		fmt.Fprintf(out, "  trade %s %s %s -> %s held=%dd pnl=%s [%s]\n",
			tr.SignalID, tr.Symbol, tr.EntryDate.Format("2006-01-02"), tr.ExitDate.Format("2006-01-02"),
			tr.HoldingDays(), pnl, tr.ExitReason)
	}
	for _, skip := range run.Report.Skipped {
		fmt.Fprintf(out, "  skipped %s [%s]: %s\n", skip.SignalID, skip.Reason, skip.Detail)
	}
	for _, w := range run.Report.Warnings {
		fmt.Fprintf(out, "  warning %s: %s\n", w.SignalID, w.Message)
	}
}
