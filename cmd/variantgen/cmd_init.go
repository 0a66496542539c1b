package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"variantgen/internal/config"
)

// initCmd writes a default configuration file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default " + config.DefaultFileName,
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		v := version
		if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "variantgen %s\n", v)
	},
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultFileName
	}
	if _, err := os.Stat(path); err == nil {
		logger.Warn("Config already exists, leaving it untouched", zap.String("path", path))
		return nil
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	logger.Info("Wrote config", zap.String("path", path))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
