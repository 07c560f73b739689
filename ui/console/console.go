// Package console renders drill reports for a terminal.
package console

import (
	"fmt"
	"io"
	"strings"

	"memguard/internal/output"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const labelWidth = 22

// Print writes the report in a compact dotted-leader layout.
func Print(w io.Writer, r output.Report) {
	fmt.Fprintf(w, "%s■ MEMGUARD DRILL%s\n", colorCyan, colorReset)

	strategies := 0
	for _, sec := range r.Sections {
		fmt.Fprintf(w, "%s─ %s%s\n", colorCyan, sec.Title, colorReset)
		if sec.ID == output.SectionRecovery {
			strategies = len(sec.Items)
			if strategies == 0 {
				fmt.Fprintf(w, "  (no strategies ran)\n")
			}
		}

		for _, it := range sec.Items {
			label := it.Label
			if len(label) > labelWidth-2 {
				label = label[:labelWidth-5] + "..."
			}

			valStr := ""
			switch {
			case it.Unit != "":
				valStr = fmt.Sprintf("%.1f%s", it.Value, it.Unit)
			case it.Value != 0:
				valStr = fmt.Sprintf("%.0f", it.Value)
			case it.Note != "":
				valStr = truncate(it.Note, 25)
			}

			marker := ""
			if it.Status != "" {
				marker = fmt.Sprintf(" %s%s%s", colorFor(it.Status), markerFor(it.Status), colorReset)
			}

			dots := strings.Repeat("·", labelWidth-len(label))
			fmt.Fprintf(w, "  %s%s %10s%s\n", label, colorCyan+dots+colorReset, valStr, marker)

			if sec.ID == output.SectionRecovery && it.Note != "" {
				fmt.Fprintf(w, "    %s\n", truncate(it.Note, 72))
			}
		}
	}

	fmt.Fprintf(w, "%s─ Summary%s: Pressure: %s%s%s | Strategies: %d\n\n",
		colorCyan, colorReset, colorFor(r.Level), r.Level, colorReset, strategies)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func markerFor(status string) string {
	switch status {
	case "ok", "LOW":
		return "✓"
	case "partial", "MODERATE", "HIGH":
		return "!"
	case "CRITICAL", "EMERGENCY":
		return "X"
	default:
		return status[:1]
	}
}

func colorFor(status string) string {
	switch status {
	case "partial", "MODERATE", "HIGH":
		return colorYellow
	case "CRITICAL", "EMERGENCY":
		return colorRed
	default:
		return colorGreen
	}
}
