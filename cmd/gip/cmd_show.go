package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/index"
	"github.com/gipvcs/gip/pkg/migrations"
	"github.com/gipvcs/gip/pkg/remote"
)

func newShowCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <address>",
		Short: "Show the index behind a remote address",
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
			idx, err := migrations.OpenIndex(cmd.Context(), r, s)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range sortedRefNames(idx.Refs) {
				fmt.Fprintf(out, "%s %s\n", idx.Refs[name], name)
			}

			objects := 0
			tips := 0
			for _, link := range idx.Objects {
				if link == index.SubmoduleTipMarker {
					tips++
				} else {
					objects++
				}
			}
			fmt.Fprintf(out, "%d objects, %d submodule tips\n", objects, tips)
			if idx.PrevIndexLink != "" {
				fmt.Fprintf(out, "previous index: %s\n", idx.PrevIndexLink)
			}

			if full {
				hashes := make([]string, 0, len(idx.Objects))
				for hash := range idx.Objects {
					hashes = append(hashes, hash)
				}
				sort.Strings(hashes)
				for _, hash := range hashes {
					fmt.Fprintf(out, "%s -> %s\n", hash, idx.Objects[hash])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "also list every object table entry")
	return cmd
}
