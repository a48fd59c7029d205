// Command dynamics runs and inspects the entity dynamics engine.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-dynamics/internal/config"
)

// #region main
func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region root
// app carries the resolved configuration to subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "dynamics",
		Short:         "Entity state dynamics engine",
		Long:          "Tracks categorized entities, their relations and state derivatives, detects cascades and runs review loops.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format override (text, json)")

	cmd.AddCommand(serveCmd(a))
	cmd.AddCommand(replayCmd(a))
	cmd.AddCommand(inspectCmd(a))
	cmd.AddCommand(statusCmd(a))
	cmd.AddCommand(catalogCmd())
	return cmd
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = newLogger(stderr, cfg.Log)
	slog.SetDefault(a.logger)
	return nil
}

// #endregion root

// #region logging
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level := parseLevel(lc.Level)
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// #endregion logging

// #region output
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion output
