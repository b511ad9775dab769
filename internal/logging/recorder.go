package logging

import (
	"fmt"
	"log/slog"
	"sync"
)

// Recorder collects the ordered detail lines a probe emits while it runs.
// It exists purely for observability: lines are surfaced as evidence in the
// final report and mirrored to the debug log, and recording can never fail
// in a way that affects a probe outcome. A nil Recorder is valid and drops
// everything.
type Recorder struct {
	mu    sync.Mutex
	name  string
	lines []string
}

func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

func (r *Recorder) Logf(format string, args ...any) {
	if r == nil {
		return
	}
	line := fmt.Sprintf(format, args...)

	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()

	slog.Debug(line, "probe", r.name)
}

// Lines returns a copy of everything recorded so far. Safe to call while
// the probe is still running; used to preserve partial evidence when a
// deadline fires.
func (r *Recorder) Lines() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
