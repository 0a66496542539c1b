// Package driver runs the parse -> generate -> write pipeline over a set of
// targets and turns parse failures into span-anchored diagnostics.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"variantgen/internal/codegen"
	"variantgen/internal/config"
	"variantgen/internal/diff"
	"variantgen/internal/enum"
	"variantgen/internal/logging"
	"variantgen/internal/parse"
)

// ErrStale is returned in check mode when a generated file is missing or
// out of date.
var ErrStale = errors.New("generated file is stale")

// DiagnosticsError carries every diagnostic of a run, in target order.
type DiagnosticsError struct {
	Diagnostics []enum.Diagnostic
}

func (e *DiagnosticsError) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Options configures a Driver.
type Options struct {
	Parse   parse.Options
	Codegen codegen.Options
	Workers int
	// Out receives generated sources when Request.Stdout is set.
	Out io.Writer
}

// OptionsFromConfig derives driver options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Parse: parse.Options{
			Directive:    cfg.Directive,
			OutputSuffix: cfg.OutputSuffix,
			RustDerive:   cfg.Rust.Derive,
		},
		Codegen: codegen.Options{
			MethodName:     cfg.MethodName,
			RustMethodName: cfg.Rust.MethodName,
			OutputSuffix:   cfg.OutputSuffix,
		},
		Workers: cfg.Workers,
		Out:     os.Stdout,
	}
}

// Request describes one run.
type Request struct {
	// Targets are Go package directories, .go files or .rs files.
	Targets []string
	// Types restricts Go targets to these type names. Empty means every
	// type carrying the generation directive.
	Types []string
	// Check compares outputs with the files on disk instead of writing.
	Check bool
	// Stdout prints outputs instead of writing them.
	Stdout bool
}

// FileStatus is the outcome for one output file.
type FileStatus string

const (
	StatusWritten   FileStatus = "written"
	StatusUnchanged FileStatus = "unchanged"
	StatusStale     FileStatus = "stale"
	StatusPrinted   FileStatus = "printed"
)

// FileResult describes one output file.
type FileResult struct {
	Path   string     `yaml:"path" json:"path"`
	Status FileStatus `yaml:"status" json:"status"`
	Enums  []string   `yaml:"enums" json:"enums"`
	// Diff is set for stale files in check mode.
	Diff string `yaml:"diff,omitempty" json:"diff,omitempty"`
}

// Result is the outcome for one target.
type Result struct {
	Target      string             `yaml:"target" json:"target"`
	State       State              `yaml:"state" json:"state"`
	Descriptors []*enum.Descriptor `yaml:"descriptors,omitempty" json:"descriptors,omitempty"`
	Files       []FileResult       `yaml:"files,omitempty" json:"files,omitempty"`
	Diagnostics []enum.Diagnostic  `yaml:"diagnostics,omitempty" json:"diagnostics,omitempty"`
	Err         error              `yaml:"-" json:"-"`
}

func (r *Result) transition(next State) {
	if !r.State.CanTransition(next) {
		panic(fmt.Sprintf("driver: invalid transition %s -> %s for %s", r.State, next, r.Target))
	}
	logging.DriverDebug("%s: %s -> %s", r.Target, r.State, next)
	r.State = next
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.transition(StateFailed)
	return r
}

// Report holds per-target results in request order.
type Report struct {
	Results []*Result `yaml:"results" json:"results"`
}

// Count returns how many targets ended in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}
	return n
}

// Files returns every file result across targets.
func (r *Report) Files() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		out = append(out, res.Files...)
	}
	return out
}

// Summary renders a one-line count per state, e.g. "parsing=0 generating=0 done=2 failed=1".
func (r *Report) Summary() string {
	var parts []string
	StateParsing.EnumerateVariants()(func(s State) bool {
		parts = append(parts, fmt.Sprintf("%s=%d", s, r.Count(s)))
		return true
	})
	return strings.Join(parts, " ")
}

// Driver orchestrates parsers and generators.
type Driver struct {
	opts    Options
	parsers *parse.ParserFactory

	outMu sync.Mutex
}

// New creates a Driver.
func New(opts Options) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Driver{
		opts:    opts,
		parsers: parse.NewParserFactory(opts.Parse),
	}
}

// Run processes every target and returns a report in request order.
// Diagnostics are returned as *DiagnosticsError; other failures are joined
// alongside it.
func (d *Driver) Run(ctx context.Context, req Request) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryDriver, "Run")
	defer timer.Stop()

	report := &Report{Results: make([]*Result, len(req.Targets))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, target := range req.Targets {
		// Stop scheduling once cancelled; already running targets finish.
		if ctx.Err() != nil {
			report.Results[i] = (&Result{Target: target}).fail(ctx.Err())
			continue
		}
		g.Go(func() error {
			report.Results[i] = d.runTarget(ctx, target, req)
			return nil
		})
	}
	_ = g.Wait()

	logging.Driver("run finished: %s", report.Summary())
	return report, report.err()
}

// err folds per-target failures into one error.
func (r *Report) err() error {
	var diags []enum.Diagnostic
	var errs []error
	for _, res := range r.Results {
		diags = append(diags, res.Diagnostics...)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	if len(diags) > 0 {
		errs = append([]error{&DiagnosticsError{Diagnostics: diags}}, errs...)
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}

type output struct {
	path  string
	src   []byte
	enums []string
}

func (d *Driver) runTarget(ctx context.Context, target string, req Request) *Result {
	res := &Result{Target: target, State: StateParsing}

	descs, err := d.parsers.ParseTarget(target, req.Types)
	if err != nil {
		diags, ok := enum.Diagnostics(err)
		if !ok {
			return res.fail(fmt.Errorf("%s: %w", target, err))
		}
		res.Diagnostics = diags
		logging.Driver("%s: %d diagnostics, nothing written", target, len(diags))
		res.transition(StateFailed)
		return res
	}
	res.Descriptors = descs
	res.transition(StateGenerating)

	if err := ctx.Err(); err != nil {
		return res.fail(err)
	}

	outputs, err := d.render(descs)
	if err != nil {
		return res.fail(fmt.Errorf("%s: %w", target, err))
	}

	for _, out := range outputs {
		fr, err := d.emit(out, req)
		if err != nil {
			return res.fail(fmt.Errorf("%s: %w", target, err))
		}
		res.Files = append(res.Files, fr)
	}

	var stale []string
	for _, fr := range res.Files {
		if fr.Status == StatusStale {
			stale = append(stale, fr.Path)
		}
	}
	if len(stale) > 0 {
		return res.fail(fmt.Errorf("%w: %s", ErrStale, strings.Join(stale, ", ")))
	}

	res.transition(StateDone)
	return res
}

// render generates every output of one target before anything is written.
func (d *Driver) render(descs []*enum.Descriptor) ([]output, error) {
	type group struct {
		gen   codegen.Generator
		path  string
		descs []*enum.Descriptor
	}
	var groups []*group
	byPath := make(map[string]*group)

	for _, desc := range descs {
		gen, err := codegen.ForLang(desc.Lang, d.opts.Codegen)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(filepath.Dir(desc.Span.File), gen.OutputName(desc))
		grp, ok := byPath[path]
		if !ok {
			grp = &group{gen: gen, path: path}
			byPath[path] = grp
			groups = append(groups, grp)
		}
		grp.descs = append(grp.descs, desc)
	}

	outputs := make([]output, 0, len(groups))
	for _, grp := range groups {
		src, err := grp.gen.Generate(grp.descs...)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(grp.descs))
		for i, desc := range grp.descs {
			names[i] = desc.Name
		}
		outputs = append(outputs, output{path: grp.path, src: src, enums: names})
	}
	sort.SliceStable(outputs, func(i, j int) bool { return outputs[i].path < outputs[j].path })
	return outputs, nil
}

func (d *Driver) emit(out output, req Request) (FileResult, error) {
	fr := FileResult{Path: out.path, Enums: out.enums}

	if req.Stdout {
		d.outMu.Lock()
		defer d.outMu.Unlock()
		if _, err := fmt.Fprintf(d.opts.Out, "// %s\n%s", out.path, out.src); err != nil {
			return fr, fmt.Errorf("failed to print %s: %w", out.path, err)
		}
		fr.Status = StatusPrinted
		return fr, nil
	}

	existing, err := os.ReadFile(out.path)
	if err != nil && !os.IsNotExist(err) {
		return fr, fmt.Errorf("failed to read %s: %w", out.path, err)
	}
	if err == nil && bytes.Equal(existing, out.src) {
		logging.DriverDebug("%s unchanged", out.path)
		fr.Status = StatusUnchanged
		return fr, nil
	}

	if req.Check {
		fr.Status = StatusStale
		fr.Diff = diff.Unified(out.path, out.path+" (generated)", string(existing), string(out.src))
		return fr, nil
	}

	if err := os.WriteFile(out.path, out.src, 0644); err != nil {
		return fr, fmt.Errorf("failed to write %s: %w", out.path, err)
	}
	logging.Driver("wrote %s (%s)", out.path, strings.Join(out.enums, ", "))
	fr.Status = StatusWritten
	return fr, nil
}

// Describe parses targets without generating anything.
func (d *Driver) Describe(ctx context.Context, targets, types []string) ([]*enum.Descriptor, error) {
	var all []*enum.Descriptor
	var diags []enum.Diagnostic
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		descs, err := d.parsers.ParseTarget(target, types)
		if err != nil {
			found, ok := enum.Diagnostics(err)
			if !ok {
				return all, fmt.Errorf("%s: %w", target, err)
			}
			diags = append(diags, found...)
			continue
		}
		all = append(all, descs...)
	}
	if len(diags) > 0 {
		return all, &DiagnosticsError{Diagnostics: diags}
	}
	return all, nil
}
