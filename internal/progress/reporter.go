package progress

import (
	"fmt"
	"io"
	"time"
)

// Reporter displays live stage-completion progress during a forge build,
// the same single-line-overwrite (`\r`) technique the teacher's
// ProgressReporter used for line counts, retargeted to stage counts.
type Reporter struct {
	totalStages     int
	stagesCompleted int
	startTime       time.Time
	lastUpdate      time.Time
}

// NewReporter creates a reporter for a build with the given total stage
// count (sum of every gcode_files entry's stage list length).
func NewReporter(totalStages int) *Reporter {
	now := time.Now()
	return &Reporter{totalStages: totalStages, startTime: now, lastUpdate: now}
}

// Update records a newly completed stage and displays progress if 2
// seconds have elapsed since the last display (component I builds run in
// the tens-to-hundreds of stages, never enough to need a line-count
// threshold the way the teacher's per-line optimizer did).
func (r *Reporter) Update(w io.Writer, stagesCompleted int) {
	r.stagesCompleted = stagesCompleted
	now := time.Now()
	if now.Sub(r.lastUpdate) < 2*time.Second && stagesCompleted < r.totalStages {
		return
	}
	r.lastUpdate = now
	elapsed := now.Sub(r.startTime)

	percent := 100.0
	if r.totalStages > 0 {
		percent = float64(stagesCompleted) / float64(r.totalStages) * 100
	}
	fmt.Fprintf(w, "\rStage %d/%d (%.1f%%) | Elapsed: %s    ",
		stagesCompleted, r.totalStages, percent, elapsed.Round(100*time.Millisecond))
}

// Finish clears the progress line with a trailing newline.
func (r *Reporter) Finish(w io.Writer) {
	fmt.Fprintln(w)
}
