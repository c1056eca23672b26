// Package progress tracks and reports build-time statistics for a forge
// run, the same role the teacher's optimizer.Statistics/ProgressReporter
// pair played for its single GCode-optimization pass, retargeted here onto
// "stages completed" rather than "lines scanned" since a forge build
// processes a handful of gcode_files stages rather than a line stream.
package progress

import "time"

// BuildStats accumulates statistics across an entire forge build (all
// gcode_files entries, all their stages).
type BuildStats struct {
	TotalStages     int
	StagesCompleted int
	FilesWritten    int
	CommandsEmitted int64
	ProcessingTime  time.Duration
}

// StagesRemaining returns how many stages are still outstanding.
func (s *BuildStats) StagesRemaining() int {
	remaining := s.TotalStages - s.StagesCompleted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentComplete returns stage completion as a percentage.
func (s *BuildStats) PercentComplete() float64 {
	if s.TotalStages == 0 {
		return 100.0
	}
	return float64(s.StagesCompleted) / float64(s.TotalStages) * 100.0
}
