package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "scribe",
	Short:         "Author, rewrite, and bundle structured lessons",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(initStyleCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(authorCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
