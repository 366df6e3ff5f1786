package nexus

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CancelSignal lets a long-running caller request early termination.
// Compute polls it between jurisdictions and before emitting each year: a
// cancelled run returns whatever jurisdictions it had already finished, with
// no error, and drops the years already emitted for a jurisdiction that was
// still in progress, so every jurisdiction in the result is complete.
type CancelSignal interface {
	Cancelled() bool
}

// Context is Compute's single input: a client's normalized transaction
// history, the rule registry to measure it against, any declared physical
// nexus, and the valuation window.
type Context struct {
	// Transactions must already be normalized (see Normalize); Compute does
	// not re-validate them.
	Transactions []Transaction
	Registry     RuleRegistry
	// Physical maps a jurisdiction to its declared physical-nexus date, if
	// any. Jurisdictions with no entry are economic-nexus-only.
	Physical map[Jurisdiction]PhysicalNexusDeclaration
	// AsOf is the valuation date: nexus tests never look past it, and
	// interest accrues through it.
	AsOf time.Time
	// YearRange is the set of calendar years to emit. When empty, Compute
	// derives it from the span of Transactions, Physical declarations, and
	// AsOf.
	YearRange []int
	// Cancel, if non-nil, is polled between jurisdictions and before each
	// year is emitted.
	Cancel CancelSignal
}

// Result is Compute's output: one YearResult per jurisdiction-year analyzed,
// plus any configuration-level issues found along the way (jurisdictions
// with transactions or physical declarations but no loaded rule).
type Result struct {
	Years      []YearResult
	Validation []ValidationIssue
}

// Compute is the Engine Orchestrator (C7): the engine's single entry point.
// It runs the Threshold Crossing Detector, Obligation Scheduler, Exposure
// Aggregator, and Interest & Penalty Calculator for every jurisdiction in the
// registry, in deterministic jurisdiction-then-year order. A jurisdiction
// named by the transactions or physical declarations but absent from the
// registry gets no YearResult; it is reported as a ValidationIssue instead.
func Compute(ctx Context) (Result, error) {
	if ctx.AsOf.IsZero() {
		return Result{}, fmt.Errorf("%w: as-of date is required", ErrConfiguration)
	}

	grouped := groupByJurisdiction(ctx.Transactions)
	years := ResolveYearRange(ctx)

	result := Result{
		Years:      make([]YearResult, 0),
		Validation: make([]ValidationIssue, 0),
	}

	for _, j := range sortedUnknownJurisdictions(grouped, ctx.Physical, ctx.Registry) {
		result.Validation = append(result.Validation, ValidationIssue{
			Field:    "jurisdiction",
			Message:  (&RuleMissingError{Jurisdiction: j}).Error(),
			Severity: SeverityError,
		})
	}

	for _, j := range sortedJurisdictions(ctx.Registry) {
		if ctx.Cancel != nil && ctx.Cancel.Cancelled() {
			break
		}

		entry := ctx.Registry[j]
		txns := SortTransactions(grouped[j])

		var physical *PhysicalNexusDeclaration
		if p, ok := ctx.Physical[j]; ok {
			physical = &p
		}

		crossing := DetectCrossing(txns, entry.Rule, years, ctx.AsOf)
		obligations := ScheduleYears(crossing, physical, years)

		emitted := len(result.Years)
		for _, year := range years {
			if ctx.Cancel != nil && ctx.Cancel.Cancelled() {
				result.Years = result.Years[:emitted]
				return result, nil
			}
			ob := obligations[year]
			yearTxns := transactionsInYear(txns, year)

			exposure := AggregateExposure(yearTxns, entry.Rule, ob.ObligationStartDate)
			liability := ComputeLiability(yearTxns, entry.Rule, entry.Penalty, exposure.BaseTax, ob.ObligationStartDate, ctx.AsOf)

			result.Years = append(result.Years, YearResult{
				Jurisdiction: j,
				Year:         year,

				NexusType:           ob.NexusType,
				NexusDate:           ob.NexusDate,
				ObligationStartDate: ob.ObligationStartDate,
				FirstNexusYear:      ob.FirstNexusYear,

				GrossSales:       exposure.GrossSales,
				TaxableSales:     exposure.TaxableSales,
				ExemptSales:      exposure.ExemptSales,
				DirectSales:      exposure.DirectSales,
				MarketplaceSales: exposure.MarketplaceSales,
				ExposureSales:    exposure.ExposureSales,

				BaseTax:            exposure.BaseTax,
				Interest:           liability.Interest,
				Penalties:          liability.Penalties,
				EstimatedLiability: exposure.BaseTax.Add(liability.Interest).Add(liability.Penalties),

				TransactionCount: exposure.TransactionCount,

				InterestMethod:       entry.Penalty.InterestMethod,
				DaysOutstanding:      liability.DaysOutstanding,
				PenaltyRate:          entry.Penalty.PenaltyRate,
				FirstTaxableSaleDate: liability.FirstTaxableSaleDate,
			})
		}
	}

	return result, nil
}

func groupByJurisdiction(txns []Transaction) map[Jurisdiction][]Transaction {
	grouped := make(map[Jurisdiction][]Transaction)
	for _, t := range txns {
		grouped[t.Jurisdiction] = append(grouped[t.Jurisdiction], t)
	}
	return grouped
}

func transactionsInYear(txns []Transaction, year int) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txns {
		if t.Date.Year() == year {
			out = append(out, t)
		}
	}
	return out
}

func sortedJurisdictions(registry RuleRegistry) []Jurisdiction {
	out := registry.Jurisdictions()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// sortedUnknownJurisdictions finds jurisdictions referenced by transactions
// or physical declarations but absent from the registry: a configuration
// gap the engine surfaces instead of silently dropping.
func sortedUnknownJurisdictions(grouped map[Jurisdiction][]Transaction, physical map[Jurisdiction]PhysicalNexusDeclaration, registry RuleRegistry) []Jurisdiction {
	seen := make(map[Jurisdiction]struct{})
	for j := range grouped {
		if _, ok := registry[j]; !ok {
			seen[j] = struct{}{}
		}
	}
	for j := range physical {
		if _, ok := registry[j]; !ok {
			seen[j] = struct{}{}
		}
	}
	out := make([]Jurisdiction, 0, len(seen))
	for j := range seen {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveYearRange returns ctx.YearRange if set, otherwise derives the
// calendar years that must be analyzed from the span of transaction dates,
// physical-nexus dates, and the as-of date, so sticky nexus resolves
// correctly through the valuation year even with sparse data. Exported so a
// caller fanning work out across multiple Context values (one jurisdiction
// at a time) can resolve a single shared range up front instead of letting
// each call derive its own, narrower one.
func ResolveYearRange(ctx Context) []int {
	if len(ctx.YearRange) > 0 {
		years := append([]int(nil), ctx.YearRange...)
		sort.Ints(years)
		return years
	}

	minYear, maxYear := ctx.AsOf.Year(), ctx.AsOf.Year()
	seen := false
	observe := func(y int) {
		if !seen {
			minYear, maxYear = y, y
			seen = true
			return
		}
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}

	for _, t := range ctx.Transactions {
		observe(t.Date.Year())
	}
	for _, p := range ctx.Physical {
		observe(p.NexusDate.Year())
	}
	observe(ctx.AsOf.Year())

	years := make([]int, 0, maxYear-minYear+1)
	for y := minYear; y <= maxYear; y++ {
		years = append(years, y)
	}
	return years
}

// RunSummary is the audit-surface aggregate a caller assembles over one
// Compute result: totals a reviewer wants at a glance without paging
// through every YearResult. It carries no wall-clock data of its own;
// GeneratedAt is left at its zero value here and is the caller's
// responsibility to stamp, consistent with Compute itself never reading the
// clock.
type RunSummary struct {
	TotalEstimatedLiability decimal.Decimal
	JurisdictionsWithNexus  int
	YearsCovered            []int
	GeneratedAt             time.Time
	ValidationReport        []ValidationIssue
}

// Summarize reduces a Result (plus the year range it was computed over)
// into a RunSummary. It is a pure function of its arguments, like Compute
// itself; callers that want GeneratedAt populated stamp it on the returned
// value afterward.
func Summarize(result Result, yearsCovered []int) RunSummary {
	total := decimal.Zero
	withNexus := make(map[Jurisdiction]struct{})

	for _, y := range result.Years {
		total = total.Add(y.EstimatedLiability)
		if y.HasNexus() {
			withNexus[y.Jurisdiction] = struct{}{}
		}
	}

	return RunSummary{
		TotalEstimatedLiability: total,
		JurisdictionsWithNexus:  len(withNexus),
		YearsCovered:            append([]int(nil), yearsCovered...),
		ValidationReport:        append([]ValidationIssue(nil), result.Validation...),
	}
}
