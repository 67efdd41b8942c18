package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/doctadg/perpstrader-sub004/internal/config"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "newsheat",
	Short: "News clustering and heat scoring service",
	Long: `newsheat clusters recent financial news into events and scores each
cluster's heat, velocity, trend, urgency and sentiment. It serves the
ranked result over REST and MCP for dashboards and trading agents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is a developer convenience; a missing file is the normal case.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(heatmapCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
