package progress

import (
	"fmt"
	"strings"
)

// ResultFormatter formats a finished build's BuildStats for display.
type ResultFormatter struct{}

// Format returns a human-readable summary of a completed forge build.
func (rf *ResultFormatter) Format(stats BuildStats) string {
	var sb strings.Builder

	sb.WriteString("\nBuild Complete\n")
	sb.WriteString("━━━━━━━━━━━━━━\n")

	sb.WriteString("Stages:\n")
	sb.WriteString(fmt.Sprintf("  Completed: %s / %s\n",
		formatNumber(int64(stats.StagesCompleted)), formatNumber(int64(stats.TotalStages))))
	sb.WriteString(fmt.Sprintf("  Files written: %s\n", formatNumber(int64(stats.FilesWritten))))
	sb.WriteString(fmt.Sprintf("  G-code commands emitted: %s\n\n", formatNumber(stats.CommandsEmitted)))

	sb.WriteString("Performance:\n")
	sb.WriteString(fmt.Sprintf("  Processing time: %.1f seconds\n", stats.ProcessingTime.Seconds()))

	return sb.String()
}

// Display prints the formatted summary to stdout.
func (rf *ResultFormatter) Display(stats BuildStats) {
	fmt.Print(rf.Format(stats))
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	str := fmt.Sprintf("%d", n)
	var sb strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
