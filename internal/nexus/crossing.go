package nexus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// yearCrossing is the economic-nexus establishment C3 found for one
// calendar year: the date nexus first applied, and the date the
// collection obligation begins within that establishing year.
type yearCrossing struct {
	NexusDate       time.Time
	ObligationStart time.Time
}

// SortTransactions orders transactions chronologically, breaking ties on a
// single date by original input order. It is stable so re-sorting
// already-sorted input is a no-op.
func SortTransactions(txns []Transaction) []Transaction {
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].InputIndex < sorted[j].InputIndex
	})
	return sorted
}

// qualifiesForThreshold reports whether a transaction counts toward the
// threshold metric: a zero-amount sale is a no-op everywhere in the engine
// and never counts, every other direct sale counts, and marketplace sales
// count only when the jurisdiction says they do.
func qualifiesForThreshold(rule JurisdictionRule, t Transaction) bool {
	if t.GrossAmount.IsZero() {
		return false
	}
	if t.Channel == ChannelMarketplace {
		return rule.MarketplaceCountsTowardThreshold
	}
	return true
}

// sumThresholdMetric sums gross sales and counts qualifying transactions
// over the given slice. The metric is always gross sales, not taxable sales.
func sumThresholdMetric(rule JurisdictionRule, txns []Transaction) (decimal.Decimal, int) {
	revenue := decimal.Zero
	count := 0
	for _, t := range txns {
		if !qualifiesForThreshold(rule, t) {
			continue
		}
		revenue = revenue.Add(t.GrossAmount)
		count++
	}
	return revenue, count
}

// crossesOperator evaluates the revenue/transaction-count totals against
// rule's operator semantics. A missing threshold collapses the comparison
// to the single defined test.
func crossesOperator(rule JurisdictionRule, revenue decimal.Decimal, count int) bool {
	revenueMet := rule.HasRevenueThreshold() && revenue.GreaterThanOrEqual(*rule.RevenueThreshold)
	countMet := rule.HasTransactionThreshold() && count >= *rule.TransactionThreshold

	switch {
	case rule.HasRevenueThreshold() && rule.HasTransactionThreshold():
		if rule.Operator == OperatorAnd {
			return revenueMet && countMet
		}
		return revenueMet || countMet
	case rule.HasRevenueThreshold():
		return revenueMet
	case rule.HasTransactionThreshold():
		return countMet
	default:
		return false
	}
}

// firstCrossingTransaction scans txns (already sorted and restricted to
// the window under test) in order, accumulating the threshold metric, and
// returns the first transaction at which the cumulative metric meets or
// exceeds the threshold.
func firstCrossingTransaction(rule JurisdictionRule, txns []Transaction) (Transaction, bool) {
	revenue := decimal.Zero
	count := 0
	for _, t := range txns {
		if !qualifiesForThreshold(rule, t) {
			continue
		}
		revenue = revenue.Add(t.GrossAmount)
		count++
		if crossesOperator(rule, revenue, count) {
			return t, true
		}
	}
	return Transaction{}, false
}

func inWindow(t Transaction, start, end time.Time) bool {
	return !t.Date.Before(start) && !t.Date.After(end)
}

func filterWindow(txns []Transaction, start, end time.Time) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txns {
		if inWindow(t, start, end) {
			out = append(out, t)
		}
	}
	return out
}

// DetectCrossing is the Threshold Crossing Detector (C3). txns must be a
// single jurisdiction's transactions, already sorted by (date,
// input_index) — use SortTransactions. years is the full set of calendar
// years that must be considered, not only the years the orchestrator will
// emit: earlier out-of-range years can still hold the transactions a
// lookback calculation needs.
//
// The returned map holds an entry for each year in which this
// jurisdiction's lookback test is met. The calendar-based methods (A, B,
// E) test every year in years independently, so later years can carry an
// entry of their own after nexus is first established; the rolling-window
// methods (C, D) stop at the first crossing and record only that one.
// Carrying nexus forward by stickiness is the Obligation Scheduler's
// concern (C4), not this detector's.
func DetectCrossing(txns []Transaction, rule JurisdictionRule, years []int, asOf time.Time) map[int]yearCrossing {
	result := make(map[int]yearCrossing)
	if !rule.HasAnyThreshold() || len(txns) == 0 {
		return result
	}

	switch rule.LookbackMethod {
	case LookbackCalendarPrevious:
		detectCalendarPrevious(txns, rule, years, result)
	case LookbackCalendarCurrentOrPrevious:
		detectCalendarCurrentOrPrevious(txns, rule, years, result)
	case LookbackRolling12Month:
		detectRolling12Month(txns, rule, asOf, result)
	case LookbackQuarterly4QPreceding:
		detectQuarterly4QPreceding(txns, rule, asOf, result)
	case LookbackCTOctSepFiscal:
		detectCTOctSepFiscal(txns, rule, years, result)
	}
	return result
}

// Method A.
func detectCalendarPrevious(txns []Transaction, rule JurisdictionRule, years []int, result map[int]yearCrossing) {
	for _, y := range years {
		priorStart, priorEnd := startOfYear(y-1), endOfYear(y-1)
		window := filterWindow(txns, priorStart, priorEnd)
		revenue, count := sumThresholdMetric(rule, window)
		if crossesOperator(rule, revenue, count) {
			result[y] = yearCrossing{
				NexusDate:       priorEnd,
				ObligationStart: startOfYear(y),
			}
		}
	}
}

// Method B.
func detectCalendarCurrentOrPrevious(txns []Transaction, rule JurisdictionRule, years []int, result map[int]yearCrossing) {
	for _, y := range years {
		priorStart, priorEnd := startOfYear(y-1), endOfYear(y-1)
		priorWindow := filterWindow(txns, priorStart, priorEnd)
		revenue, count := sumThresholdMetric(rule, priorWindow)
		if crossesOperator(rule, revenue, count) {
			result[y] = yearCrossing{
				NexusDate:       priorEnd,
				ObligationStart: startOfYear(y),
			}
			continue
		}

		currentWindow := filterWindow(txns, startOfYear(y), endOfYear(y))
		if txn, ok := firstCrossingTransaction(rule, currentWindow); ok {
			result[y] = yearCrossing{
				NexusDate:       txn.Date,
				ObligationStart: startOfMonth(addMonths(txn.Date, 1)),
			}
		}
	}
}

// Method C. Rolling 12-month windows are evaluated at each calendar
// month-end across the whole data span; the first qualifying month-end
// establishes nexus once, regardless of which calendar year it falls in.
func detectRolling12Month(txns []Transaction, rule JurisdictionRule, asOf time.Time, result map[int]yearCrossing) {
	first, last := txns[0].Date, txns[len(txns)-1].Date
	scanEnd := last
	if asOf.After(scanEnd) {
		scanEnd = asOf
	}
	for m := startOfMonth(first); !m.After(startOfMonth(scanEnd)); m = addMonths(m, 1) {
		windowStart := startOfMonth(addMonths(m, -11))
		windowEnd := endOfMonth(m)
		window := filterWindow(txns, windowStart, windowEnd)
		revenue, count := sumThresholdMetric(rule, window)
		if crossesOperator(rule, revenue, count) {
			y := m.Year()
			result[y] = yearCrossing{
				NexusDate:       endOfMonth(m),
				ObligationStart: startOfMonth(addMonths(m, 1)),
			}
			return
		}
	}
}

// Method D. Quarterly windows look at the four quarters strictly
// preceding the quarter under test; like Method C this is a single global
// scan, not a per-year re-test.
func detectQuarterly4QPreceding(txns []Transaction, rule JurisdictionRule, asOf time.Time, result map[int]yearCrossing) {
	first, last := txns[0].Date, txns[len(txns)-1].Date
	if asOf.After(last) {
		last = asOf
	}
	startYear, startQ := first.Year(), quarterOf(first)
	endYear, endQ := last.Year(), quarterOf(last)

	for y, q := startYear, startQ; y < endYear || (y == endYear && q <= endQ); y, q = nextQuarter(y, q) {
		preceding := precedingNQuarters(y, q, 4)
		windowStart, _ := quarterBounds(preceding[0].Year, preceding[0].Q)
		_, windowEnd := quarterBounds(preceding[3].Year, preceding[3].Q)
		window := filterWindow(txns, windowStart, windowEnd)
		revenue, count := sumThresholdMetric(rule, window)
		if crossesOperator(rule, revenue, count) {
			qStart, _ := quarterBounds(y, q)
			result[y] = yearCrossing{
				NexusDate:       windowEnd,
				ObligationStart: qStart,
			}
			return
		}
	}
}

func nextQuarter(year, q int) (int, int) {
	if q == 4 {
		return year + 1, 1
	}
	return year, q + 1
}

// Method E. Connecticut's single Oct 1 (prior year) – Sep 30 fiscal
// window, tested independently per analyzed calendar year.
func detectCTOctSepFiscal(txns []Transaction, rule JurisdictionRule, years []int, result map[int]yearCrossing) {
	for _, y := range years {
		windowStart := time.Date(y-1, time.October, 1, 0, 0, 0, 0, time.UTC)
		windowEnd := time.Date(y, time.September, 30, 0, 0, 0, 0, time.UTC)
		window := filterWindow(txns, windowStart, windowEnd)
		revenue, count := sumThresholdMetric(rule, window)
		if !crossesOperator(rule, revenue, count) {
			continue
		}

		obligationStart := startOfYear(y)
		if txn, ok := firstCrossingTransaction(rule, window); ok {
			if txn.Date.Year() == y {
				obligationStart = startOfMonth(addMonths(txn.Date, 1))
			}
		}
		result[y] = yearCrossing{
			NexusDate:       windowEnd,
			ObligationStart: obligationStart,
		}
	}
}
