package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/migrations"
	"github.com/gipvcs/gip/pkg/remote"
)

func newPushCmd() *cobra.Command {
	var gitDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "push <address> <src-ref>[:<dst-ref>] ...",
		Short: "Push local refs to a remote and publish the new index",
		Long: `Push resolves each local ref, uploads every object reachable from it
that the remote's index does not already hold, records the updated refs
and publishes the superseding index. A refspec with an empty source
(":refs/heads/gone") deletes the destination ref. A leading "+" forces
the update past the staleness check, as does --force.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := remote.Parse(args[0])
			if err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			db, refs, err := openGitDir(gitDir)
			if err != nil {
				return err
			}

			idx, err := migrations.OpenIndex(cmd.Context(), r, s)
			if err != nil {
				return err
			}

			for _, spec := range args[1:] {
				src, dst, forced := splitRefspec(spec)
				if err := idx.PushRef(cmd.Context(), src, dst, force || forced, db, refs, s); err != nil {
					return fmt.Errorf("push %s: %w", spec, err)
				}
			}

			published, err := idx.Publish(cmd.Context(), s, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), published)
			return nil
		},
	}

	cmd.Flags().StringVar(&gitDir, "git-dir", ".git", "path to the git directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the fetch-first staleness check")
	return cmd
}

// splitRefspec breaks "+src:dst" into its parts. A spec without a colon
// pushes a ref to its own name.
func splitRefspec(spec string) (src, dst string, forced bool) {
	if strings.HasPrefix(spec, "+") {
		forced = true
		spec = spec[1:]
	}
	src, dst, ok := strings.Cut(spec, ":")
	if !ok {
		dst = src
	}
	return src, dst, forced
}
