package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "twinchat",
	Short: "Conversational digital twin for a personal site",
	Long: `twinchat serves a chat endpoint that answers visitor questions as the
site owner, grounded in a local profile directory. It captures interested
visitors' contact details and the questions it could not answer, and can
deploy itself to a Spaces-style hosting platform.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the twinchat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("twinchat version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(deployCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
