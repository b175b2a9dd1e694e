package netlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const snapshotVersion = 1

// SnapshotSuffix is appended to the design name to form its snapshot file.
const SnapshotSuffix = ".netlist.json"

func snapshotPath(dir, design string) string {
	return filepath.Join(dir, filepath.Base(design)+SnapshotSuffix)
}

type snapshot struct {
	Version int    `json:"version"`
	Design  string `json:"design"`
	Tables  Tables `json:"tables"`
}

// LoadSnapshot reads the netlist previously saved for design. A missing
// file, another design, or an older format all report ok=false without an
// error.
func LoadSnapshot(dir, design string) (Tables, bool, error) {
	path := snapshotPath(dir, design)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tables{}, false, nil
		}
		return Tables{}, false, fmt.Errorf("read netlist snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Tables{}, false, fmt.Errorf("parse netlist snapshot: %w", err)
	}
	if snap.Version != snapshotVersion || snap.Design != design {
		return Tables{}, false, nil
	}
	return snap.Tables, true, nil
}

// SaveSnapshot stores tables as the latest netlist of design.
func SaveSnapshot(dir, design string, tables Tables) error {
	snap := snapshot{
		Version: snapshotVersion,
		Design:  design,
		Tables:  tables,
	}
	if err := writeJSONAtomic(snapshotPath(dir, design), snap); err != nil {
		return fmt.Errorf("write netlist snapshot: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp snapshot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	return nil
}
