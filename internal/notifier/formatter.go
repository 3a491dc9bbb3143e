package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"MarketPulse/internal/runner"
)

// maxListedFailures caps the failure lines in one message.
const maxListedFailures = 15

// FormatBatchReport renders a finished batch as a Telegram HTML message.
func FormatBatchReport(res *runner.BatchResult) string {
	var b strings.Builder

	icon := "✅"
	if res.Failed > 0 {
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s batch</b> | %s\n\n", icon, res.Job, res.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Trigger: %s\n", res.Trigger))
	b.WriteString(fmt.Sprintf("Tickers: %d | ok %d | failed %d\n", res.Succeeded+res.Failed, res.Succeeded, res.Failed))
	b.WriteString(fmt.Sprintf("Duration: %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second)))

	var failed []string
	for symbol, status := range res.Details {
		if status != runner.StatusSuccess {
			failed = append(failed, symbol)
		}
	}
	if len(failed) == 0 {
		return b.String()
	}
	sort.Strings(failed)

	b.WriteString("\n<b>Failures:</b>\n")
	for i, symbol := range failed {
		if i == maxListedFailures {
			b.WriteString(fmt.Sprintf("  … and %d more\n", len(failed)-maxListedFailures))
			break
		}
		b.WriteString(fmt.Sprintf("  %s: %s\n", symbol, html.EscapeString(res.Details[symbol])))
	}
	return b.String()
}
