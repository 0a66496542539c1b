// Command variantgen generates variant enumerators for enum declarations.
//
// Typical use is from go:generate, stringer style:
//
//	//go:generate variantgen -type=GrammarElements
//
// Rust sources are supported too: items annotated with
// #[derive(VariantEnumerator)] get an inherent enumerate_variants function in
// <file>_variants.rs, to be pulled in with include!.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"variantgen/internal/config"
	"variantgen/internal/driver"
	"variantgen/internal/logging"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	typeNames  []string
	toStdout   bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd generates enumerators; it is also the generate command.
var rootCmd = &cobra.Command{
	Use:   "variantgen [targets...]",
	Short: "Generate ordered variant enumerators for enums",
	Long: `variantgen inspects enum declarations and generates an accessor that
yields every variant, in declaration order, exactly once.

Go enums are named basic types with typed constants, or sealed interfaces
whose variants are field-less structs. Targets are package directories,
.go files (their whole package) or .rs files. With no targets the current
directory is used, or $GOFILE when run by go generate.

Without -type, every Go type whose doc comment carries //variantgen:enumerate
is generated.`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runGenerate,
}

// setup loads configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultFileName
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg = loaded

	logCfg := cfg.Logging.ToLogging()
	if verbose {
		logCfg.Level = "debug"
	}
	if err := logging.Initialize(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logging.Base()
	logging.BootDebug("config loaded from %s", path)
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringSliceVarP(&typeNames, "type", "t", nil, "Go type names to generate (repeatable or comma-separated)")
	rootCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print generated code instead of writing files")
	generateCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print generated code instead of writing files")
	describeCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format: yaml or json")
	checkCmd.Flags().BoolVar(&showDiff, "diff", false, "Show a diff for stale files")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// normalizeArgs accepts Go-style single-dash long flags (-type=T) as used
// in go:generate lines.
func normalizeArgs(args []string) []string {
	long := []string{"type", "config", "stdout", "verbose", "output", "diff"}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		if arg == "--" {
			copy(out[i:], args[i:])
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		for _, l := range long {
			if name == l {
				out[i] = "-" + arg
				break
			}
		}
	}
	return out
}

// newDriver builds a driver from the loaded configuration.
func newDriver(cmd *cobra.Command) *driver.Driver {
	opts := driver.OptionsFromConfig(cfg)
	opts.Out = cmd.OutOrStdout()
	return driver.New(opts)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
