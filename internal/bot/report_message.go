package bot

import (
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"strings"
	"time"
)

// telegram rejects longer messages
const maxMessageLength = 4096

func formatReport(modules []string, report entities.Report, duration time.Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ingestion finished in %v\n", duration.Round(time.Second))
	if len(modules) > 0 {
		fmt.Fprintf(&b, "Modules: %s\n", strings.Join(modules, ", "))
	}
	fmt.Fprintf(&b, "Added: %d\nTotal: %d\n", report.Added, report.Total)

	if len(report.FailedScrapers) == 0 {
		b.WriteString("No failures")
		return b.String()
	}

	fmt.Fprintf(&b, "Failed: %d\n", len(report.FailedScrapers))
	for _, failure := range report.FailedScrapers {
		fmt.Fprintf(&b, "\n%s: %s\n", failure.Module, failure.Error)
		if failure.Diagnosis == nil {
			continue
		}
		fmt.Fprintf(&b, "Diagnosis: %s\n", failure.Diagnosis.Explanation)
		if failure.Diagnosis.SuggestedFix != nil {
			fmt.Fprintf(&b, "Suggested fix:\n%s\n", *failure.Diagnosis.SuggestedFix)
		}
	}

	return truncateMessage(strings.TrimRight(b.String(), "\n"))
}

func truncateMessage(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLength {
		return text
	}
	return string(runes[:maxMessageLength-1]) + "…"
}
