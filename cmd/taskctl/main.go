package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/app"
	"github.com/BuzzLyutic/task-sync-client/internal/config"
)

var Version = "dev"

const shutdownTimeout = 10 * time.Second

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "taskctl - tasks, notes and reminders from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(itemsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(draftCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fail(err.Error())
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openApp loads configuration and builds the client. Callers must Close it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, newLogger())
	if err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}
	return a, nil
}

// closeApp gets its own deadline: after ctrl+c the command context is
// already cancelled and the final snapshot flush would fail.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Close(ctx)
}

func requireLogin(a *app.App) error {
	if !a.IsAuthenticated() {
		return errors.New("not logged in, run `taskctl login` first")
	}
	return nil
}
