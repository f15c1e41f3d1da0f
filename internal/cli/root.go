package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transcript-tool/internal/app"
	"transcript-tool/internal/config"
	"transcript-tool/internal/database"
	"transcript-tool/internal/services"
)

var rootCmd = &cobra.Command{
	Use:           "transcriptctl",
	Short:         "Operate the video transcription service: manage API keys, transcribe, migrate",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(keysCmd, transcribeCmd, migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// Main runs the CLI and exits non-zero on failure.
func Main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// openCore connects to the database configured in the environment and builds
// the transcription stack. The returned func releases the connection.
func openCore(ctx context.Context) (*app.Core, func(), error) {
	cfg := config.Load()
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, nil, err
	}
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	core, err := app.NewCore(ctx, cfg, pool, services.NewGeminiBackend)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return core, pool.Close, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), doneStyle.Render("✓")+" migrations applied")
		return nil
	},
}
