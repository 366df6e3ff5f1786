// Package report renders a computed nexus.Result as a human-readable table
// or a machine-readable JSON document for downstream dashboards.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/saltworks/nexusengine/internal/nexus"
)

// sortedYears returns result.Years ordered by (jurisdiction, year),
// matching the orchestrator's own emission order so either renderer can be
// handed an out-of-order slice safely.
func sortedYears(result nexus.Result) []nexus.YearResult {
	years := append([]nexus.YearResult(nil), result.Years...)
	sort.Slice(years, func(i, j int) bool {
		if years[i].Jurisdiction != years[j].Jurisdiction {
			return years[i].Jurisdiction < years[j].Jurisdiction
		}
		return years[i].Year < years[j].Year
	})
	return years
}

// RenderTable writes a fixed-width summary table of every jurisdiction-year
// in result to w, restricted to years with nexus unless includeNone is set,
// followed by the run's aggregate summary.
func RenderTable(w io.Writer, result nexus.Result, summary nexus.RunSummary, includeNone bool) error {
	const rowFormat = "%-4s  %-4d  %-9s  %-11s  %14s  %12s  %12s  %12s  %14s\n"

	if _, err := fmt.Fprintf(w, "%-4s  %-4s  %-9s  %-11s  %14s  %12s  %12s  %12s  %14s\n",
		"JUR", "YEAR", "NEXUS", "OBLIGATION", "EXPOSURE", "BASE TAX", "INTEREST", "PENALTY", "LIABILITY"); err != nil {
		return err
	}

	for _, y := range sortedYears(result) {
		if !includeNone && !y.HasNexus() {
			continue
		}
		if _, err := fmt.Fprintf(w, rowFormat,
			string(y.Jurisdiction),
			y.Year,
			string(y.NexusType),
			formatDate(y.ObligationStartDate),
			y.ExposureSales.StringFixed(2),
			y.BaseTax.StringFixed(2),
			y.Interest.StringFixed(2),
			y.Penalties.StringFixed(2),
			y.EstimatedLiability.StringFixed(2),
		); err != nil {
			return err
		}
	}

	if len(result.Validation) > 0 {
		if _, err := fmt.Fprintf(w, "\n%d validation issue(s):\n", len(result.Validation)); err != nil {
			return err
		}
		for _, issue := range result.Validation {
			if _, err := fmt.Fprintf(w, "  [%s] row %d, field %s: %s\n", issue.Severity, issue.RowIndex, issue.Field, issue.Message); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "\ngenerated %s: %d jurisdiction(s) with nexus, total estimated liability %s across %d year(s)\n",
		summary.GeneratedAt.Format("2006-01-02T15:04:05Z"),
		summary.JurisdictionsWithNexus,
		summary.TotalEstimatedLiability.StringFixed(2),
		len(summary.YearsCovered),
	)
	return err
}

func formatDate(t *time.Time) string {
	if t == nil {
		return strings.Repeat("-", 10)
	}
	return t.Format("2006-01-02")
}

// RenderJSON writes result and its run summary as indented JSON to w, for a
// downstream dashboard or audit archive. encoding/json is sufficient here:
// Result is a flat, fully-typed struct with no streaming-decode or
// schema-validation need that would justify a third-party JSON library.
func RenderJSON(w io.Writer, result nexus.Result, summary nexus.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonResult{
		Years:      sortedYears(result),
		Validation: result.Validation,
		Summary:    summary,
	})
}

type jsonResult struct {
	Years      []nexus.YearResult      `json:"years"`
	Validation []nexus.ValidationIssue `json:"validation"`
	Summary    nexus.RunSummary        `json:"summary"`
}
