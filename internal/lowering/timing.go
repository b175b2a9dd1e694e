package lowering

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// timingLine is one JSON line of the timing log. Kind is "stage" for a step
// of the driver and "pass" for a lowering pass; offsets are milliseconds
// since the run started.
type timingLine struct {
	Run        string  `json:"run"`
	Kind       string  `json:"kind"`
	Phase      string  `json:"phase"`
	Design     string  `json:"design,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
}

// timingLog appends the timing of one run to a JSONL file. A nil log
// records nothing.
type timingLog struct {
	run   string
	start time.Time
	file  *os.File
	enc   *json.Encoder
	err   error
}

// openTimingLog returns nil when path is empty.
func openTimingLog(path string, start time.Time) (*timingLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &timingLog{run: uuid.NewString(), start: start, file: f, enc: json.NewEncoder(f)}, nil
}

func (tl *timingLog) write(line timingLine, start time.Time, d time.Duration) {
	if tl == nil || tl.err != nil {
		return
	}
	line.Run = tl.run
	line.StartMS = millis(start.Sub(tl.start))
	line.DurationMS = millis(d)
	tl.err = tl.enc.Encode(line)
}

// stage records a driver step that began at start and ends now.
func (tl *timingLog) stage(phase string, start time.Time, status string) {
	tl.write(timingLine{Kind: "stage", Phase: phase, Status: status}, start, time.Since(start))
}

func (tl *timingLog) pass(pass, design, status string, start time.Time, d time.Duration) {
	tl.write(timingLine{Kind: "pass", Phase: pass, Design: design, Status: status}, start, d)
}

// close reports the first write error, if any.
func (tl *timingLog) close() error {
	if tl == nil {
		return nil
	}
	cerr := tl.file.Close()
	if tl.err != nil {
		return tl.err
	}
	return cerr
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func (l *Lowerer) timingPath() string {
	if envPath := os.Getenv("FSM_LOWER_TIMING_JSONL"); envPath != "" {
		return envPath
	}
	if l.Config != nil {
		return l.Config.Analysis.TimingPath
	}
	return ""
}
