package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearthguard/hearthguard/internal/app"
)

var cfg *app.Config

var rootCmd = &cobra.Command{
	Use:   "hearthctl",
	Short: "Operator tool for HearthGuard",
	Long: `Operator tool for HearthGuard.
Applies schema migrations, triggers background jobs and issues development tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := app.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newTokenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("hearthctl", slog.Any("error", err))
		os.Exit(1)
	}
}
