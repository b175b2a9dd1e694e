package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robert-at-pretension-io/fsm-lower/internal/config"
	"github.com/robert-at-pretension-io/fsm-lower/internal/lowering"
	"github.com/robert-at-pretension-io/fsm-lower/internal/netlist"
)

func main() {
	output := flag.String("output", "", "write netlist JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write netlist JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous netlist JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	entities := flag.String("entities", "", "comma-separated entity names to keep")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fsm-netlist [--output file] [--entities a,b] [--delta-from prev.json --delta-out delta.json] <design.json>")
		os.Exit(1)
	}

	path := args[0]
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Lowering.StopAfter = ""
	cfg.Analysis.SnapshotDir = ""

	l := lowering.New(cfg)
	l.Out = io.Discard
	result, err := l.LowerFile(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tables := *result.Netlist

	var keep map[string]bool
	if *entities != "" {
		keep = make(map[string]bool)
		for _, name := range strings.Split(*entities, ",") {
			if name = strings.TrimSpace(name); name != "" {
				keep[name] = true
			}
		}
		tables = netlist.FilterByEntities(tables, keep)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing netlist: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding netlist: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := netlist.ComputeDelta(prev, *result.Netlist)
		if keep != nil {
			delta = netlist.FilterDeltaByEntities(delta, keep)
		}
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

func readTables(path string) (netlist.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return netlist.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables netlist.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return netlist.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
