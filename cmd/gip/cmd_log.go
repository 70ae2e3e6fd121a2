package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/migrations"
	"github.com/gipvcs/gip/pkg/remote"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log <address>",
		Short: "Walk the chain of superseded indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := remote.Parse(args[0])
			if err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			label := r.String()
			for i := 0; limit <= 0 || i < limit; i++ {
				idx, err := migrations.OpenIndex(cmd.Context(), r, s)
				if err != nil {
					return fmt.Errorf("open %s: %w", label, err)
				}
				fmt.Fprintf(out, "%s  %d refs, %d objects\n", label, len(idx.Refs), len(idx.Objects))
				if idx.PrevIndexLink == "" {
					return nil
				}
				r, err = remote.Parse(idx.PrevIndexLink)
				if err != nil {
					return fmt.Errorf("previous index link of %s: %w", label, err)
				}
				label = idx.PrevIndexLink
			}
			fmt.Fprintln(out, "...")
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of indexes to walk (0 for all)")
	return cmd
}
