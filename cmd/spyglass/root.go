package main

import (
	"context"
	"os"

	"github.com/sandevgo/spyglass/internal/config"
	"github.com/sandevgo/spyglass/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "spyglass",
	Short: "Spyglass is a read-only agent gateway",
	Long:  `Spyglass exposes a conversational agent over HTTP with per-session continuity and an enforced read-only tool policy.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
