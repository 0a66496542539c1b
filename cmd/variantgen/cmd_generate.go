package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"variantgen/internal/driver"
)

var showDiff bool

// generateCmd is the explicit form of the root command.
var generateCmd = &cobra.Command{
	Use:   "generate [targets...]",
	Short: "Generate enumerators (default command)",
	RunE:  runGenerate,
}

// checkCmd verifies that generated files are up to date.
var checkCmd = &cobra.Command{
	Use:   "check [targets...]",
	Short: "Fail if any generated file is missing or stale",
	RunE:  runCheck,
}

// resolveTargets applies the default target: $GOFILE under go generate,
// otherwise the current directory.
func resolveTargets(args []string) []string {
	if len(args) > 0 {
		return args
	}
	if gofile := os.Getenv("GOFILE"); gofile != "" {
		return []string{filepath.Join(".", gofile)}
	}
	return []string{"."}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	targets := resolveTargets(args)
	logger.Debug("Generating", zap.Strings("targets", targets), zap.Strings("types", typeNames))

	report, err := newDriver(cmd).Run(ctx, driver.Request{
		Targets: targets,
		Types:   typeNames,
		Stdout:  toStdout,
	})
	if report != nil {
		files := report.Files()
		written := 0
		for _, f := range files {
			if f.Status == driver.StatusWritten {
				written++
			}
		}
		logger.Info("Generation finished",
			zap.Int("targets", len(report.Results)),
			zap.Int("files", len(files)),
			zap.Int("written", written),
			zap.String("states", report.Summary()))
	}
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	report, err := newDriver(cmd).Run(ctx, driver.Request{
		Targets: resolveTargets(args),
		Types:   typeNames,
		Check:   true,
	})
	if report == nil {
		return err
	}
	for _, f := range report.Files() {
		if f.Status != driver.StatusStale {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stale: %s\n", f.Path)
		if showDiff {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", f.Diff)
		}
	}
	return err
}
