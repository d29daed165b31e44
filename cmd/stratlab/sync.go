package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var window windowFlags
	cmd := &cobra.Command{
		Use:   "sync SYMBOL [SYMBOL...]",
		Short: "Fetch missing daily candles from the feed into the canonical store",
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
			ing := a.Components().Ingestor
			if ing == nil {
				return errors.New("feed.provider is none; nothing to sync from")
			}
			var errs []error
			for _, sym := range args {
				res, err := ing.Sync(cmd.Context(), sym, from, to)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", sym, err))
					continue
				}
				if res.UpToDate {
					fmt.Fprintf(cmd.OutOrStdout(), "%s up to date\n", res.Symbol)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s fetched=%d written=%d\n", res.Symbol, res.Fetched, res.Written)
			}
			return errors.Join(errs...)
		},
	}
	window.bind(cmd)
	return cmd
}
