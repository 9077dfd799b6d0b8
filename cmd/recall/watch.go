package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace root and index files as they change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng.Start(ctx)
	defer eng.Shutdown(context.Background())

	w, err := watch.New(cfg.WorkspaceRoot, eng, watch.Options{
		MaxFileBytes: cfg.MaxFileBytes,
	})
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
