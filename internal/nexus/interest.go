package nexus

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// LiabilityResult is the Interest & Penalty Calculator's (C6) output for one
// jurisdiction-year.
type LiabilityResult struct {
	Interest             decimal.Decimal
	Penalties            decimal.Decimal
	DaysOutstanding      int
	FirstTaxableSaleDate *time.Time
}

// ComputeLiability accrues interest and computes penalties on a year's base
// tax. txns must be restricted to the jurisdiction and year under
// analysis, sorted or not — only the earliest qualifying sale matters.
// asOf is the caller-supplied valuation date interest accrues through.
func ComputeLiability(txns []Transaction, rule JurisdictionRule, cfg InterestPenaltyConfig, baseTax decimal.Decimal, obligationStart *time.Time, asOf time.Time) LiabilityResult {
	if !baseTax.IsPositive() {
		return LiabilityResult{Interest: decimal.Zero, Penalties: decimal.Zero}
	}

	accrualStart := firstExposureSaleDate(txns, rule, obligationStart)
	if accrualStart == nil {
		return LiabilityResult{Interest: decimal.Zero, Penalties: decimal.Zero}
	}

	daysOutstanding := int(asOf.Sub(*accrualStart).Hours() / 24)
	if daysOutstanding < 0 {
		daysOutstanding = 0
	}

	interest := accrueInterest(baseTax, cfg, *accrualStart, asOf, daysOutstanding)
	penalty := computePenalty(baseTax, interest, cfg)

	return LiabilityResult{
		Interest:             interest,
		Penalties:            penalty,
		DaysOutstanding:      daysOutstanding,
		FirstTaxableSaleDate: accrualStart,
	}
}

// firstExposureSaleDate finds the earliest sale that actually contributed to
// exposure sales: on or after obligation start, taxable, and not excluded by
// marketplace-liability policy — the accrual start date.
func firstExposureSaleDate(txns []Transaction, rule JurisdictionRule, obligationStart *time.Time) *time.Time {
	if obligationStart == nil {
		return nil
	}
	sorted := SortTransactions(txns)
	for _, t := range sorted {
		if t.Date.Before(*obligationStart) {
			continue
		}
		if t.IsFullyExempt() {
			continue
		}
		if t.Channel == ChannelMarketplace && rule.MarketplaceExcludedFromLiability {
			continue
		}
		d := t.Date
		return &d
	}
	return nil
}

const daysPerYear = 365

func accrueInterest(baseTax decimal.Decimal, cfg InterestPenaltyConfig, accrualStart, asOf time.Time, daysOutstanding int) decimal.Decimal {
	annualRate := cfg.AnnualInterestRate

	switch cfg.InterestMethod {
	case InterestCompoundMonthly:
		months := monthsElapsedFractional(accrualStart, asOf)
		monthlyRate := annualRate.Div(decimal.NewFromInt(12))
		factor := decimalPowFractional(decimal.NewFromInt(1).Add(monthlyRate), months)
		return baseTax.Mul(factor.Sub(decimal.NewFromInt(1))).RoundBank(2)
	case InterestCompoundDaily:
		dailyRate := annualRate.Div(decimal.NewFromInt(daysPerYear))
		factor := decimalPow(decimal.NewFromInt(1).Add(dailyRate), daysOutstanding)
		return baseTax.Mul(factor.Sub(decimal.NewFromInt(1))).RoundBank(2)
	default: // InterestSimple, and unspecified defaults to simple.
		dailyRate := annualRate.Div(decimal.NewFromInt(daysPerYear))
		return baseTax.Mul(dailyRate).Mul(decimal.NewFromInt(int64(daysOutstanding))).RoundBank(2)
	}
}

// monthsElapsed counts whole months from start to end, never negative.
func monthsElapsed(start, end time.Time) int {
	months := 0
	for cursor := start; !addMonths(cursor, 1).After(end); cursor = addMonths(cursor, 1) {
		months++
	}
	return months
}

// monthsElapsedFractional is monthsElapsed plus the day-fraction of the
// trailing partial month: the whole-months count understates elapsed time
// for any accrual window that doesn't land exactly on a month boundary, and
// compound-monthly interest must compound continuously through that
// remainder rather than dropping it.
func monthsElapsedFractional(start, end time.Time) decimal.Decimal {
	whole := monthsElapsed(start, end)
	wholeMark := addMonths(start, whole)
	if !wholeMark.Before(end) {
		return decimal.NewFromInt(int64(whole))
	}

	nextMark := addMonths(wholeMark, 1)
	elapsedDays := end.Sub(wholeMark).Hours() / 24
	monthDays := nextMark.Sub(wholeMark).Hours() / 24
	fraction := elapsedDays / monthDays

	return decimal.NewFromInt(int64(whole)).Add(decimal.NewFromFloat(fraction))
}

// decimalPow raises base to a non-negative integer exponent by repeated
// multiplication, used for compound-daily accrual where the exponent is
// always a whole day count.
func decimalPow(base decimal.Decimal, exp int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for i := 0; i < exp; i++ {
		result = result.Mul(base)
	}
	return result
}

// decimalPowFractional raises base to a fractional exponent. decimal.Decimal
// has no fractional-exponent Pow, so this crosses to float64 and back —
// compound-monthly accrual is the one place in this package that needs a
// non-integer exponent, and the precision loss at float64 is immaterial
// next to the RoundBank(2) the caller applies to the result.
func decimalPowFractional(base, exp decimal.Decimal) decimal.Decimal {
	b, _ := base.Float64()
	e, _ := exp.Float64()
	return decimal.NewFromFloat(math.Pow(b, e))
}

func computePenalty(baseTax, interest decimal.Decimal, cfg InterestPenaltyConfig) decimal.Decimal {
	if !baseTax.IsPositive() {
		return decimal.Zero
	}

	penaltyBase := baseTax
	if cfg.PenaltyAppliesTo == PenaltyOnBaseTaxPlusInterest {
		penaltyBase = baseTax.Add(interest)
	}

	penalty := penaltyBase.Mul(cfg.PenaltyRate).RoundBank(2)
	if cfg.PenaltyMin != nil && penalty.LessThan(*cfg.PenaltyMin) {
		penalty = *cfg.PenaltyMin
	}
	if cfg.PenaltyMax != nil && penalty.GreaterThan(*cfg.PenaltyMax) {
		penalty = *cfg.PenaltyMax
	}
	return penalty
}
