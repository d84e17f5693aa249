// Package cli implements the qahub command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qahub/internal/app"
	"qahub/internal/config"
	"qahub/internal/log"
	"qahub/internal/source"
)

var (
	version = "dev"
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "qahub",
	Short: "Answer questions from your own documents",
	Long: `qahub indexes a small set of documents and answers questions using only
their content. Questions with no relevant document are refused instead of
answered from general knowledge.

Without a subcommand the interactive terminal UI starts.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/qahub/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringSliceVar(&tuiDocs, "docs", nil, "files, directories or storage URLs to index")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func newLogger(out io.Writer, cfg *config.AppConfig) *log.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return log.New(out, level)
}

// buildApp loads configuration and fills the session from docs, or from the
// seed set when no docs are given and seeding is enabled.
func buildApp(ctx context.Context, logOut io.Writer, docs []string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(logOut, cfg)
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := populate(ctx, a, docs); err != nil {
		_ = a.Session.Close()
		return nil, err
	}
	return a, nil
}

func populate(ctx context.Context, a *app.App, docs []string) error {
	if len(docs) == 0 {
		if !a.Config.Ingest.Seed {
			return nil
		}
		seeded, err := a.Session.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		a.Logger.Debug("seeded session", "documents", len(seeded))
		return nil
	}
	files, err := source.NewLoader(a.Converter.Supports).LoadAll(ctx, docs)
	if err != nil {
		return err
	}
	report, err := a.Session.Ingest(ctx, files)
	if err != nil {
		return err
	}
	for _, f := range report.Failed {
		a.Logger.Warn("skipped file", "file", f.Name, "error", f.Err)
	}
	a.Logger.Info("documents indexed", "documents", len(report.Documents), "failed", len(report.Failed))
	return nil
}
