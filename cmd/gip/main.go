package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagAPI     string
	flagVerbose int
)

func main() {
	root := &cobra.Command{
		Use:   "gip",
		Short: "Inspect and maintain git-over-IPFS remotes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case flagVerbose >= 2:
				logrus.SetLevel(logrus.TraceLevel)
			case flagVerbose == 1:
				logrus.SetLevel(logrus.DebugLevel)
			default:
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.config/gip/config.toml)")
	root.PersistentFlags().StringVar(&flagAPI, "api", "", "IPFS daemon API address (overrides config)")
	root.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newPushCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gip 0.2.0-dev")
		},
	}
}
