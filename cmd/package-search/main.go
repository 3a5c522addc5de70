// Command package-search serves ranked package search over HTTP and answers
// one-shot queries from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "package-search",
	Short: "Package search and ranking service",
	Long: `Holds a corpus of package metadata, builds an inverted token index over it
and answers ranked queries by text relevance, popularity, health, maintenance
or age. The index is rebuilt in the background and swapped in atomically.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
