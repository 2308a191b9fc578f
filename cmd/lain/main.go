package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/ein-plus/lain/internal/cli"
	"github.com/ein-plus/lain/internal/lainerr"
)

func main() {
	// Set up logging first
	logLevel := log.InfoLevel
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if lvl, err := log.ParseLevel(strings.ToLower(s)); err == nil {
			logLevel = lvl
		} else {
			log.Warn("Ignoring invalid LOG_LEVEL", "value", s)
		}
	}

	log.SetLevel(logLevel)
	log.SetReportTimestamp(false)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create and execute the root command
	rootCmd := cli.NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		cli.PrintError(os.Stderr, err)
	}

	stop()
	os.Exit(lainerr.ExitCode(err))
}
