package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/remote"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <address>",
		Short: "Validate and describe a remote address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := remote.Parse(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address:   %s\n", r)
			if r.IsIPNS() {
				fmt.Fprintln(out, "naming:    mutable (ipns)")
			} else {
				fmt.Fprintln(out, "naming:    immutable (ipfs)")
			}
			if hash, ok := r.Hash(); ok {
				fmt.Fprintf(out, "hash:      %s\n", hash)
			} else {
				fmt.Fprintln(out, "hash:      none (placeholder, no index published yet)")
			}
			return nil
		},
	}
}
