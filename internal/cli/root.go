// Package cli implements the decantctl operator commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RBarbieri13/Decant-sub001/internal/app"
	"github.com/RBarbieri13/Decant-sub001/internal/logging"
	"github.com/RBarbieri13/Decant-sub001/pkg/config"
)

var version = "dev"

var (
	envFile    string
	tuningFile string
	logLevel   string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "decantctl",
	Short:         "Operate the Decant hierarchy ledger and similarity engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		if tuningFile != "" {
			if err := c.Similarity.LoadFile(tuningFile); err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
		}
		level := c.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logCloser = logging.Init(logging.Config{
			Level:      level,
			Format:     c.LogFormat,
			FilePath:   c.LogFile,
			MaxSize:    c.LogMaxSizeMB,
			MaxBackups: c.LogMaxBackups,
			MaxAge:     c.LogMaxAgeDays,
			Console:    cmd.ErrOrStderr(),
		})
		cfg = c
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&tuningFile, "tuning", "", "YAML similarity tuning file (overrides SIMILARITY_TUNING_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for this command")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.Build(cmd.Context(), cfg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
