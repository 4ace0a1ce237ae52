// Package report renders engine snapshots and benchmark results for
// the CLI, following the same go-pretty table conventions the rest of
// this codebase's ancestor used for MCP tool/resource listings, but
// over this domain's own types instead of MCP protocol types.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"aegisrt/internal/engine"
	"aegisrt/internal/metrics"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatTable   Format = "table"
	FormatJSON    Format = "json"
)

func createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

// FormatSnapshot renders an engine.Snapshot as a services table
// followed by a recent-alerts table, matching spec.md §6's status
// surface.
func FormatSnapshot(snap engine.Snapshot) string {
	if len(snap.Services) == 0 {
		return formatEmptyMessage("no services registered")
	}

	t := createTable()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("STATE"),
		text.FgHiCyan.Sprint("SUSPENSIONS"),
		text.FgHiCyan.Sprint("FAILED"),
		text.FgHiCyan.Sprint("FORCED"),
	})
	for _, s := range snap.Services {
		t.AppendRow(table.Row{
			text.FgHiCyan.Sprint(s.Name),
			stateColor(s.State).Sprint(s.State),
			s.SuspensionCount,
			s.FailedAttempts,
			s.ForcedShutdowns,
		})
	}

	var result strings.Builder
	t.SetOutputMirror(&result)
	t.Render()

	result.WriteString(fmt.Sprintf("\nTotal: %s services, %s graceful / %s forced shutdowns\n",
		text.FgHiWhite.Sprint(len(snap.Services)),
		text.FgGreen.Sprint(snap.GracefulShutdowns),
		text.FgRed.Sprint(snap.ForcedShutdowns)))

	if len(snap.RecentAlerts) > 0 {
		result.WriteString("\n" + text.FgHiCyan.Sprint("Recent alerts:") + "\n")
		at := createTable()
		at.AppendHeader(table.Row{
			text.FgHiCyan.Sprint("RESOURCE"),
			text.FgHiCyan.Sprint("LEVEL"),
			text.FgHiCyan.Sprint("VALUE"),
			text.FgHiCyan.Sprint("TIME"),
		})
		for _, a := range snap.RecentAlerts {
			at.AppendRow(table.Row{
				a.ResourceType,
				severityColor(string(a.Level)).Sprint(a.Level),
				fmt.Sprintf("%.1f", a.CurrentValue),
				a.Timestamp.Format("15:04:05"),
			})
		}
		at.SetOutputMirror(&result)
		at.Render()
	}

	return result.String()
}

// FormatBenchmark renders a metrics.BenchmarkResult as a field/value
// table with its SLO compliance breakdown.
func FormatBenchmark(r metrics.BenchmarkResult) string {
	t := createTable()
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("FIELD"), text.FgHiCyan.Sprint("VALUE")})
	t.AppendRow(table.Row{"Load profile", string(r.LoadProfile)})
	t.AppendRow(table.Row{"Total requests", r.TotalRequests})
	t.AppendRow(table.Row{"Successful", r.SuccessfulRequests})
	t.AppendRow(table.Row{"Failed", r.FailedRequests})
	t.AppendRow(table.Row{"Error rate", fmt.Sprintf("%.2f%%", r.ErrorRate*100)})
	t.AppendRow(table.Row{"Avg latency (ms)", fmt.Sprintf("%.2f", r.AvgLatencyMs)})
	t.AppendRow(table.Row{"P50 (ms)", fmt.Sprintf("%.2f", r.P50LatencyMs)})
	t.AppendRow(table.Row{"P95 (ms)", fmt.Sprintf("%.2f", r.P95LatencyMs)})
	t.AppendRow(table.Row{"P99 (ms)", fmt.Sprintf("%.2f", r.P99LatencyMs)})
	t.AppendRow(table.Row{"Actual RPS", fmt.Sprintf("%.2f", r.ActualRPS)})

	var result strings.Builder
	t.SetOutputMirror(&result)
	t.Render()

	if len(r.SLOCompliance) > 0 {
		result.WriteString("\n" + text.FgHiCyan.Sprint("SLO compliance:") + "\n")
		for name, ok := range r.SLOCompliance {
			mark := text.FgGreen.Sprint("PASS")
			if !ok {
				mark = text.FgRed.Sprint("FAIL")
			}
			result.WriteString(fmt.Sprintf("  %s: %s\n", name, mark))
		}
	}

	return result.String()
}

func formatEmptyMessage(message string) string {
	return fmt.Sprintf("%s %s\n", text.FgYellow.Sprint("!"), text.FgYellow.Sprint(message))
}

func stateColor(state string) text.Color {
	switch state {
	case "ACTIVE":
		return text.FgGreen
	case "SUSPENDED":
		return text.FgYellow
	case "FAILED":
		return text.FgRed
	default:
		return text.FgHiBlack
	}
}

func severityColor(level string) text.Color {
	switch level {
	case "emergency", "critical":
		return text.FgRed
	case "warning":
		return text.FgYellow
	default:
		return text.FgHiBlack
	}
}
