package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gipvcs/gip/pkg/migrations"
	"github.com/gipvcs/gip/pkg/odb"
	"github.com/gipvcs/gip/pkg/remote"
)

func newFetchCmd() *cobra.Command {
	var gitDir string

	cmd := &cobra.Command{
		Use:   "fetch <address> [<ref> ...]",
		Short: "Fetch refs from a remote into the local object database",
		Args:  cobra.MinimumNArgs(1),
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

			names := args[1:]
			if len(names) == 0 {
				names = sortedRefNames(idx.Refs)
			}
			for _, name := range names {
				hash, ok := idx.Refs[name]
				if !ok {
					return fmt.Errorf("remote has no ref %s", name)
				}
				if err := idx.FetchRef(cmd.Context(), hash, name, db, refs, s); err != nil {
					return fmt.Errorf("fetch %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hash, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gitDir, "git-dir", ".git", "path to the git directory")
	return cmd
}

// sortedRefNames returns a ref table's names in stable order.
func sortedRefNames(refs map[string]string) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// openGitDir wires the loose-object database and ref store under a git
// directory.
func openGitDir(dir string) (odb.Database, odb.RefStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("git dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("git dir %s: not a directory", dir)
	}
	return odb.NewLoose(dir), odb.NewFileRefs(dir), nil
}
