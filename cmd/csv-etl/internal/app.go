// Package internal contains the main application logic for the CLI.
package internal

import (
	"context"
	"os"

	"github.com/liamcoop/csvetl/internal/commands"
	"github.com/liamcoop/csvetl/internal/logger"
)

// Run is the main application logic, extracted for testability.
// It accepts OS dependencies as parameters (context, env lookup).
func Run(ctx context.Context, getenv func(string) string) error {
	logger.Configure(getenv, os.Stderr)
	defer func() { _ = logger.Shutdown(context.WithoutCancel(ctx)) }()

	rootCmd := commands.NewRootCmd()
	return rootCmd.ExecuteContext(ctx)
}
