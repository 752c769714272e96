package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docaudit/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool

	// Loaded by the root PersistentPreRunE for every subcommand.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docaudit",
	Short: "Audit regulatory dossiers against a lab's stage checklist",
	Long: `docaudit extracts the text of a regulatory dossier (PDF, DOCX, HTML,
Markdown, CSV or plain text), has an LLM audit it chunk by chunk and
consolidates the findings into one report: stages found, stages missing
and problems ranked by severity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; a broken one is not.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./docaudit.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, auditCmd, labKeyCmd)
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// cliLogger writes human-readable logs to stderr so stdout stays clean for JSON output.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
}
