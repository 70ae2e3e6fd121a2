package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/migrations"
	"github.com/gipvcs/gip/pkg/remote"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <address>",
		Short: "Re-publish an index at the current protocol version",
		Long: `Migrate opens the index behind an address, upgrading any old protocol
encoding on the way in, and publishes the result. For an IPNS address the
mutable name is repointed; for an IPFS address the new immutable address
is printed and the old one keeps its old contents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := remote.Parse(args[0])
			if err != nil {
				return err
			}
			if r.IsNew() {
				return fmt.Errorf("%s has no published index to migrate", r)
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			idx, err := migrations.OpenIndex(cmd.Context(), r, s)
			if err != nil {
				return err
			}
			published, err := idx.Publish(cmd.Context(), s, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), published)
			return nil
		},
	}
}
