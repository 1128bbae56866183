package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var (
	verbosity int
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "javelin",
	Short: "Javelin bytecode interpreter",
	Long:  "Javelin runs, disassembles, and profiles serialized bytecode programs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commonlog.Configure(verbosity, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity")
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "C", ".", "directory to search for javelin.toml")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
