package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"variantgen/internal/enum"
)

var outputFormat string

// describeCmd prints parsed descriptors without generating anything.
var describeCmd = &cobra.Command{
	Use:   "describe [targets...]",
	Short: "Print the enums found in the targets",
	Long: `Parses the targets and prints every enum descriptor: name, kind, package
and variants with their source positions. Diagnostics are reported as usual.`,
	RunE: runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	descs, err := newDriver(cmd).Describe(ctx, resolveTargets(args), typeNames)
	if len(descs) > 0 {
		if werr := writeDescriptors(cmd.OutOrStdout(), outputFormat, descs); werr != nil {
			return werr
		}
	}
	return err
}

func writeDescriptors(w io.Writer, format string, descs []*enum.Descriptor) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(descs); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := sonic.ConfigStd.MarshalIndent(descs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	return fmt.Errorf("unknown output format %q (valid: yaml, json)", format)
}
