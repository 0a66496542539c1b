package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"variantgen/internal/driver"
	"variantgen/internal/enum"
	"variantgen/internal/watch"
)

// watchCmd regenerates on change until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Regenerate enumerators whenever sources change",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	d := newDriver(cmd)

	handler := func(ctx context.Context, target string) error {
		_, err := d.Run(ctx, driver.Request{Targets: []string{target}, Types: typeNames})
		var diagErr *driver.DiagnosticsError
		if errors.As(err, &diagErr) {
			printDiagnostics(cmd, diagErr.Diagnostics)
		}
		return err
	}

	w, err := watch.New(roots, watch.Options{
		Debounce:       cfg.Watch.Debounce,
		IgnorePatterns: cfg.Watch.IgnorePatterns,
		OutputSuffix:   cfg.OutputSuffix,
	}, handler)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Info("Watching", zap.Strings("roots", roots), zap.Duration("debounce", cfg.Watch.Debounce))

	<-ctx.Done()
	w.Stop()

	stats := w.Stats()
	logger.Info("Watcher stopped",
		zap.Int("events", stats.Events),
		zap.Int("regenerations", stats.Regenerations),
		zap.Int("errors", stats.Errors))
	return nil
}

func printDiagnostics(cmd *cobra.Command, diags []enum.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(cmd.ErrOrStderr(), d.String())
	}
}
