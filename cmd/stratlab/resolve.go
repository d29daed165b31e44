package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"stratlab/internal/market"
	"stratlab/internal/resolver"

	"github.com/spf13/cobra"
)

type windowFlags struct {
	from string
	to   string
}

func (w *windowFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.from, "from", "", "start date YYYY-MM-DD (default: unbounded)")
	cmd.Flags().StringVar(&w.to, "to", "", "end date YYYY-MM-DD (default: today)")
}

func (w *windowFlags) parse() (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if w.from != "" {
		if from, err = market.ParseDate(w.from); err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
	}
	if w.to != "" {
		if to, err = market.ParseDate(w.to); err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
	} else {
		to = market.Day(time.Now())
	}
	if !from.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("--to %s is before --from %s", w.to, w.from)
	}
	return from, to, nil
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		window windowFlags
		mode   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "resolve SYMBOL [SYMBOL...]",
		Short: "Resolve daily candles from the canonical store, filling gaps from the feed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := window.parse()
			if err != nil {
				return err
			}
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			comp := a.Components()
			m := resolver.ParseMode(strings.ToLower(mode))
			view := comp.Resolver.WithPolicy(resolver.PolicyFor(m, opts.cfg.Resolver))
			out := view.ResolveMany(cmd.Context(), args, from, to)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tCANDLES\tCANONICAL\tFEED\tLAST\tSTALE\tSKIPPED\tERROR")
			for _, sym := range slices.Sorted(maps.Keys(out)) {
				res := out[sym]
				last := "-"
				if d, ok := res.LastDate(); ok {
					last = market.FormatDate(d)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%t\t%s\t%s\n", sym, len(res.Candles), res.CanonicalCount,
					res.FeedCount, last, res.Stale, dash(res.FeedSkipped), dash(res.FeedError))
			}
			return tw.Flush()
		},
	}
	window.bind(cmd)
	cmd.Flags().StringVar(&mode, "mode", "screening", "screening | backtest")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full resolutions as JSON")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
