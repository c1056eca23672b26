package progress

import (
	"strings"
	"testing"
)

func TestStagesRemaining(t *testing.T) {
	s := &BuildStats{TotalStages: 5, StagesCompleted: 2}
	if s.StagesRemaining() != 3 {
		t.Fatalf("expected 3 remaining, got %d", s.StagesRemaining())
	}
}

func TestPercentCompleteZeroStagesIsComplete(t *testing.T) {
	s := &BuildStats{}
	if s.PercentComplete() != 100.0 {
		t.Fatalf("expected 100%% for a zero-stage build, got %v", s.PercentComplete())
	}
}

func TestPercentCompleteHalfway(t *testing.T) {
	s := &BuildStats{TotalStages: 4, StagesCompleted: 2}
	if s.PercentComplete() != 50.0 {
		t.Fatalf("expected 50%%, got %v", s.PercentComplete())
	}
}

func TestResultFormatterIncludesStageCounts(t *testing.T) {
	stats := BuildStats{TotalStages: 3, StagesCompleted: 3, FilesWritten: 2, CommandsEmitted: 1500}
	out := (&ResultFormatter{}).Format(stats)
	if out == "" {
		t.Fatal("expected non-empty formatted output")
	}
	if !strings.Contains(out, "Completed: 3 / 3") {
		t.Fatalf("expected stage counts in formatted output, got %q", out)
	}
}
