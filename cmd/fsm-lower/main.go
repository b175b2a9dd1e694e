// fsm-lower takes typed, name-resolved designs through the lowering passes
// and writes the flat result.
//
// THE PIPELINE:
//   1. CUE checks the design file against the #Design contract
//   2. The design is decoded into the tree with its symbol table
//   3. The lowering passes run in order (see internal/passes)
//   4. The lowered tree is exported as netlist tables, checked against #Netlist
//   5. OPA evaluates the design rules over the tables
//
// WHEN A PASS REPORTS SOMETHING ODD:
//   Use --stop-after and --dump to look at the tree between passes, and set
//   FSM_LOWER_CHECK_TREES=1 to run the invariant checks after every pass.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"

	"github.com/robert-at-pretension-io/fsm-lower/internal/config"
	"github.com/robert-at-pretension-io/fsm-lower/internal/lowering"
	"github.com/robert-at-pretension-io/fsm-lower/internal/passes"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		runInit(os.Args[2:])
		return
	}

	verbose := flag.Bool("v", false, "print per-pass timing")
	configPath := flag.String("c", "", "config file (default: search fsm_lower.json, .fsm_lower.json, fsm_lower.toml)")
	jsonOut := flag.Bool("json", false, "write the full result as JSON")
	dump := flag.Bool("dump", false, "print the tree after every pass")
	watch := flag.Bool("watch", false, "lower again whenever an input changes")
	stopAfter := flag.String("stop-after", "", "stop after the named pass")
	format := flag.String("format", "", `output format: "text" or "json" (netlist tables)`)
	output := flag.String("o", "", "write output to file (default: stdout)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	path := args[0]

	cfg, err := loadConfig(*configPath, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *stopAfter != "" {
		if !knownPass(*stopAfter) {
			fmt.Fprintf(os.Stderr, "Error: unknown pass %q (passes: %v)\n", *stopAfter, passes.Names())
			os.Exit(1)
		}
		cfg.Lowering.StopAfter = *stopAfter
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *output != "" {
		cfg.Output.Path = *output
	}
	if cfg.Analysis.SnapshotDir != "" && !filepath.IsAbs(cfg.Analysis.SnapshotDir) {
		cfg.Analysis.SnapshotDir = filepath.Join(rootOf(path), cfg.Analysis.SnapshotDir)
	}

	l := lowering.New(cfg)
	l.Verbose = *verbose
	l.JSONOutput = *jsonOut
	l.Dump = *dump

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := inputs(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ok := lowerAll(ctx, l, files)
	if !*watch {
		if !ok {
			os.Exit(1)
		}
		return
	}
	if err := watchInputs(ctx, l, files); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: fsm-lower [options] <design.json | dir>
       fsm-lower init [config.json | config.toml]

Options:
  -v                 Print per-pass timing
  -c <file>          Use this config file
  --json             Write the full result (passes, diagnostics, netlist) as JSON
  --dump             Print the tree after every pass
  --watch            Lower again whenever an input file changes
  --stop-after <p>   Stop after pass p
  --format <f>       "text" (lowered tree) or "json" (netlist tables)
  -o <file>          Write output to file

Configuration:
  fsm-lower looks for configuration in:
    1. ./fsm_lower.json, ./.fsm_lower.json, ./fsm_lower.toml
    2. the same names under <dir>
    3. ~/.config/fsm_lower/config.json

Environment:
  FSM_LOWER_CHECK_TREES=1       Run invariant checks after every pass
  FSM_LOWER_TIMING_JSONL=<file> Append per-pass timing events`)
}

func runInit(args []string) {
	configPath := "fsm_lower.json"
	if len(args) > 0 {
		configPath = args[0]
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	pterm.Success.Printfln("Created %s", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Design file patterns")
	fmt.Println("  - Pass pipeline options")
	fmt.Println("  - Design rule severities")
}

func loadConfig(configPath, path string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		pterm.Warning.Printfln("Could not load config: %v (using defaults)", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

func knownPass(name string) bool {
	for _, n := range passes.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func rootOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// inputs returns path itself for a file, or the configured design files
// under it for a directory.
func inputs(cfg *config.Config, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := cfg.ResolveInputs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving inputs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no design files under %s", path)
	}
	return files, nil
}

func lowerAll(ctx context.Context, l *lowering.Lowerer, files []string) bool {
	ok := true
	for _, file := range files {
		if len(files) > 1 && !l.JSONOutput {
			pterm.Info.Printfln("Lowering %s", file)
		}
		if err := l.Run(ctx, file); err != nil {
			pterm.Error.Printfln("%s: %v", file, err)
			ok = false
		}
	}
	return ok
}

// watchInputs lowers a file again after it changes. Events arriving within
// a short window are coalesced into one run.
func watchInputs(ctx context.Context, l *lowering.Lowerer, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directories.
	watched := make(map[string]bool)
	inputSet := make(map[string]bool, len(files))
	for _, f := range files {
		abs, _ := filepath.Abs(f)
		inputSet[abs] = true
		dir := filepath.Dir(abs)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		watched[dir] = true
	}
	pterm.Info.Printfln("Watching %d file(s), Ctrl-C to stop", len(files))

	const settle = 50 * time.Millisecond
	pending := make(map[string]bool)
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			if !inputSet[abs] {
				continue
			}
			pending[abs] = true
			timer.Reset(settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			pterm.Warning.Printfln("watch error: %v", err)
		case <-timer.C:
			for file := range pending {
				pterm.Info.Printfln("%s changed", file)
				lowerAll(ctx, l, []string{file})
			}
			pending = make(map[string]bool)
		}
	}
}
