// Package lowering drives a design file through the whole middle-end:
// contract check, decoding, the ordered lowering passes, netlist export and
// design rules.
package lowering

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
	"github.com/robert-at-pretension-io/fsm-lower/internal/compiler"
	"github.com/robert-at-pretension-io/fsm-lower/internal/config"
	"github.com/robert-at-pretension-io/fsm-lower/internal/design"
	"github.com/robert-at-pretension-io/fsm-lower/internal/netlist"
	"github.com/robert-at-pretension-io/fsm-lower/internal/passes"
	"github.com/robert-at-pretension-io/fsm-lower/internal/policy"
	"github.com/robert-at-pretension-io/fsm-lower/internal/report"
	"github.com/robert-at-pretension-io/fsm-lower/internal/transform"
	"github.com/robert-at-pretension-io/fsm-lower/internal/validator"
)

// Lowerer runs the pipeline for one design at a time.
type Lowerer struct {
	Config *config.Config

	// Out receives the lowered design or netlist; Log receives progress,
	// diagnostics and summaries.
	Out io.Writer
	Log io.Writer

	Verbose    bool
	JSONOutput bool
	// Dump prints the tree after every pass.
	Dump bool
}

// PassResult describes one executed pass.
type PassResult struct {
	Name       string  `json:"name"`
	Changed    bool    `json:"changed"`
	Errors     int     `json:"errors"`
	DurationMS float64 `json:"duration_ms"`
}

// Result is everything a run produced. Netlist, Delta and Violations are
// only filled when every pass ran.
type Result struct {
	Design      string              `json:"design"`
	Passes      []PassResult        `json:"passes"`
	StoppedAt   string              `json:"stopped_at,omitempty"`
	Diagnostics []report.Diagnostic `json:"diagnostics"`
	Netlist     *netlist.Tables     `json:"netlist,omitempty"`
	Delta       *netlist.Delta      `json:"delta,omitempty"`
	Violations  []policy.Violation  `json:"violations"`
	Summary     policy.Summary      `json:"summary"`

	Root *ast.Root `json:"-"`
}

// New creates a Lowerer writing to stdout and stderr.
func New(cfg *config.Config) *Lowerer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Lowerer{Config: cfg, Out: os.Stdout, Log: os.Stderr}
}

// LowerFile reads and lowers one design file.
func (l *Lowerer) LowerFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading design: %w", err)
	}
	return l.Lower(ctx, filepath.Base(path), data)
}

// Lower runs the pipeline over the bytes of a design file. A returned error
// means the design could not be lowered; the Result, when non-nil, still
// holds the diagnostics collected up to that point.
func (l *Lowerer) Lower(ctx context.Context, name string, data []byte) (*Result, error) {
	if l.Config == nil {
		l.Config = config.DefaultConfig()
	}
	cfg := l.Config
	runStart := time.Now()

	var pipelineErrs []error
	recordPipelineErr := func(err error) {
		if err != nil {
			pipelineErrs = append(pipelineErrs, err)
		}
	}

	timing, err := openTimingLog(l.timingPath(), runStart)
	if err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer func() { _ = timing.close() }()

	// 1. Input contract
	stepStart := time.Now()
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
	}
	if err := v.ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("CRITICAL: design contract violation (upstream -> fsm-lower mismatch): %w", err)
	}
	timing.stage("validate_design", stepStart, "")

	// 2. Decode
	stepStart = time.Now()
	cctx := compiler.New(compiler.Options{
		Separator:  cfg.Lowering.Separator,
		CheckTrees: cfg.TreeChecks() || envBool("FSM_LOWER_CHECK_TREES"),
	})
	if !l.JSONOutput && l.Log != nil {
		cctx.Reporter.SetOutput(l.Log)
	}
	root, err := design.Decode(cctx, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	timing.stage("decode", stepStart, "")

	result := &Result{
		Design:     name,
		Passes:     []PassResult{},
		Violations: []policy.Violation{},
	}
	finish := func() {
		result.Diagnostics = cctx.Reporter.Diagnostics()
		result.Root = root
		timing.stage("total", runStart, "")
		if err := timing.close(); err != nil {
			recordPipelineErr(fmt.Errorf("timing output failed: %w", err))
		}
		timing = nil
	}

	// 3. Passes
	for _, p := range passes.Lowering(cctx, cfg.Lowering.NormalizeRounds) {
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}

		before := cctx.Reporter.ErrorCount()
		passStart := time.Now()
		out, err := transform.Run(cctx, p, root)
		duration := time.Since(passStart)

		status := "ok"
		if err != nil {
			status = "aborted"
		} else if out == root {
			status = "unchanged"
		}
		timing.pass(p.Name(), name, status, passStart, duration)
		result.Passes = append(result.Passes, PassResult{
			Name:       p.Name(),
			Changed:    err == nil && out != root,
			Errors:     cctx.Reporter.ErrorCount() - before,
			DurationMS: millis(duration),
		})

		if err != nil {
			result.StoppedAt = p.Name()
			finish()
			return result, &PassError{Pass: p.Name(), Err: err}
		}
		root = out

		if l.Dump && l.Log != nil {
			fmt.Fprintf(l.Log, "=== after %s ===\n%s\n", p.Name(), ast.Format(root))
		}
		if !cctx.Reporter.ShouldProceed() {
			result.StoppedAt = p.Name()
			finish()
			return result, fmt.Errorf("lowering stopped after %s: %d error(s)", p.Name(), cctx.Reporter.ErrorCount())
		}
		if cfg.Lowering.StopAfter != "" && cfg.Lowering.StopAfter == p.Name() {
			result.StoppedAt = p.Name()
			finish()
			return result, joinPipelineErrors(pipelineErrs)
		}
	}

	// 4. Netlist
	stepStart = time.Now()
	tables, err := netlist.Build(ctx, root, cfg.Analysis.MaxParallelEntities)
	if err != nil {
		finish()
		return result, fmt.Errorf("building netlist: %w", err)
	}
	result.Netlist = &tables
	timing.stage("netlist", stepStart, "")

	// 5. Output contract
	stepStart = time.Now()
	nv, err := validator.NewNetlistValidator()
	if err != nil {
		finish()
		return result, fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
	}
	if err := nv.Validate(tables); err != nil {
		finish()
		return result, fmt.Errorf("CRITICAL: netlist contract violation (lowering -> emission mismatch): %w", err)
	}
	timing.stage("validate_netlist", stepStart, "")

	// 6. Delta against the previous run
	if dir := cfg.Analysis.SnapshotDir; dir != "" {
		stepStart = time.Now()
		status := "initial"
		prev, ok, err := netlist.LoadSnapshot(dir, name)
		if err != nil {
			recordPipelineErr(fmt.Errorf("netlist snapshot load failed: %w", err))
		} else if ok {
			delta := netlist.ComputeDelta(prev, tables)
			result.Delta = &delta
			status = "delta"
		}
		if err := netlist.SaveSnapshot(dir, name, tables); err != nil {
			recordPipelineErr(fmt.Errorf("netlist snapshot save failed: %w", err))
		}
		timing.stage("delta", stepStart, status)
	}

	// 7. Design rules
	if cfg.PolicyEnabled() {
		stepStart = time.Now()
		engine, err := policy.New()
		if err != nil {
			finish()
			return result, fmt.Errorf("initialize policy engine: %w", err)
		}
		severities := make(map[string]string, len(policy.Rules))
		for rule, def := range policy.Rules {
			severities[rule] = cfg.GetRuleSeverity(rule, def)
		}
		pr, err := engine.Evaluate(ctx, policy.Input{Tables: tables, Severities: severities})
		if err != nil {
			recordPipelineErr(fmt.Errorf("policy evaluation failed: %w", err))
		} else {
			result.Violations = pr.Violations
			result.Summary = pr.Summary
		}
		timing.stage("policy", stepStart, "")
	}

	finish()
	if l.Verbose && !l.JSONOutput && l.Log != nil {
		l.printTiming(result, time.Since(runStart))
	}
	return result, joinPipelineErrors(pipelineErrs)
}

// PassError is returned when a pass aborts with a fatal user error or an
// internal compiler error.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string { return e.Pass + ": " + e.Err.Error() }

func (e *PassError) Unwrap() error { return e.Err }

// Run lowers one file and writes the output selected by the configuration.
func (l *Lowerer) Run(ctx context.Context, path string) error {
	result, err := l.LowerFile(ctx, path)
	if result == nil {
		return err
	}

	if l.JSONOutput {
		enc := json.NewEncoder(l.Out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return fmt.Errorf("failed to encode JSON output: %w", encErr)
		}
		return err
	}

	if pe, ok := err.(*PassError); ok {
		report.DisplayError(l.Log, pe.Err)
	}
	stoppedOnRequest := result.StoppedAt != "" && result.StoppedAt == l.Config.Lowering.StopAfter
	if err == nil || stoppedOnRequest {
		if writeErr := l.writeOutput(result); writeErr != nil {
			return writeErr
		}
	}
	l.printSummary(result)
	return err
}

func (l *Lowerer) writeOutput(result *Result) error {
	w := l.Out
	if path := l.Config.Output.Path; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if l.Config.Output.Format == "json" && result.Netlist != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Netlist); err != nil {
			return fmt.Errorf("failed to encode netlist: %w", err)
		}
		return nil
	}
	_, err := io.WriteString(w, ast.Format(result.Root))
	return err
}

func (l *Lowerer) printSummary(result *Result) {
	if l.Log == nil {
		return
	}
	if len(result.Violations) > 0 {
		fmt.Fprintf(l.Log, "\n=== Design Rule Violations ===\n")
		for _, v := range result.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(l.Log, "%s [%s] %s:%d - %s\n", icon, v.Rule, v.File, v.Line, v.Message)
		}
	}

	if result.Netlist != nil {
		fmt.Fprintf(l.Log, "\n=== Netlist Summary ===\n")
		fmt.Fprintf(l.Log, "  Entities:  %d\n", len(result.Netlist.Entities))
		fmt.Fprintf(l.Log, "  Ports:     %d\n", len(result.Netlist.Ports))
		fmt.Fprintf(l.Log, "  Instances: %d\n", len(result.Netlist.Instances))
		fmt.Fprintf(l.Log, "  Connects:  %d\n", len(result.Netlist.Connects))
		if result.Delta != nil {
			fmt.Fprintf(l.Log, "  Changed:   +%d -%d rows\n", result.Delta.Added.Len(), result.Delta.Removed.Len())
		}
	}

	var errs, warns int
	for _, d := range result.Diagnostics {
		if d.Severity == report.SeverityWarning {
			warns++
		} else {
			errs++
		}
	}
	fmt.Fprintf(l.Log, "\n=== Lowering Summary ===\n")
	fmt.Fprintf(l.Log, "  Passes:   %d\n", len(result.Passes))
	if result.StoppedAt != "" {
		fmt.Fprintf(l.Log, "  Stopped:  after %s\n", result.StoppedAt)
	}
	fmt.Fprintf(l.Log, "  Errors:   %d\n", errs+result.Summary.Errors)
	fmt.Fprintf(l.Log, "  Warnings: %d\n", warns+result.Summary.Warnings)
}

func (l *Lowerer) printTiming(result *Result, total time.Duration) {
	fmt.Fprintf(l.Log, "\n=== Timing Summary ===\n")
	for _, p := range result.Passes {
		mark := ""
		if !p.Changed {
			mark = " (unchanged)"
		}
		fmt.Fprintf(l.Log, "  %-22s %s%s\n", p.Name+":", time.Duration(p.DurationMS*float64(time.Millisecond)).Round(time.Microsecond), mark)
	}
	fmt.Fprintf(l.Log, "  %-22s %s\n", "total:", total.Round(time.Microsecond))
}

func joinPipelineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(errs))
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}
