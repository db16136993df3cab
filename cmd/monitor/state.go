package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <source-id>",
		Short: "Print the persisted state of a source as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printState(cmd.Context(), args[0])
		},
	}
}

func printState(ctx context.Context, id string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, sources, err := loadConfig()
	if err != nil {
		return err
	}
	known := false
	for _, src := range sources {
		known = known || src.ID == id
	}
	if !known {
		return fmt.Errorf("unknown source %q", id)
	}

	store, err := openStore(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	st, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if st == nil {
		st = &domain.SourceState{}
	}
	return printJSON(st)
}
