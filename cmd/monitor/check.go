package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/notify"
	"github.com/hamed0406/sourcewatch/internal/scheduler"
)

func checkCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check <source-id>",
		Short: "Run one tick for a source",
		Long: `Run a single fetch, detect, notify and persist cycle for one source.
With --dry-run notifications are printed to stdout and state is not saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.Context(), args[0], dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print notifications instead of sending, do not save state")
	return cmd
}

func check(ctx context.Context, id string, dryRun bool) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	defer func() {
		if cerr := a.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	src, ok := a.source(id)
	if !ok {
		return fmt.Errorf("unknown source %q", id)
	}

	var n notify.Notifier = a.router
	if dryRun {
		n = &notify.Log{Logger: a.logger, W: os.Stdout}
	}
	task, err := a.taskFor(src, &scheduler.Dispatcher{Notifier: n, Logger: a.logger, Delay: a.cfg.NotifyDelay}, dryRun)
	if err != nil {
		return err
	}

	tickID := uuid.NewString()
	if v7, verr := uuid.NewV7(); verr == nil {
		tickID = v7.String()
	}
	if err := task.Tick(scheduler.WithTickID(ctx, tickID)); err != nil {
		a.logger.Warn("check_failed", zap.String("source_id", id), zap.Error(err))
		return err
	}
	fmt.Fprintf(os.Stderr, "✔ %s checked (tick %s)\n", src.DisplayName(), tickID)
	return nil
}
