package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "aivisctl",
		Short: "AI visibility runner - query models about a domain and read the results",
		Long: `aivisctl talks to a running aivisibility server. It starts runs that ask
every configured model about a domain's approved phrases, follows the
live event stream, and reads back stored results and statistics.`,
		SilenceUsage: true,
	}
)

func init() {
	def := os.Getenv("AIVIS_SERVER")
	if def == "" {
		def = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", def, "server base URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
