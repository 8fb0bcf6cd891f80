package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-review",
	Short: "Identity verification and duplicate-account review service",
	Long: `Face Review verifies bearer tokens from multiple identity providers,
links accounts across providers via signed metadata, routes accounts with
matching faces to a human review queue, and notifies the account service of
admin decisions.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
