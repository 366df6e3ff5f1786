package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExposureResult is the Exposure Aggregator's (C5) output for one
// jurisdiction-year: the sales breakdown and the base tax computed from it.
type ExposureResult struct {
	GrossSales       decimal.Decimal
	TaxableSales     decimal.Decimal
	ExemptSales      decimal.Decimal
	DirectSales      decimal.Decimal
	MarketplaceSales decimal.Decimal
	ExposureSales    decimal.Decimal
	BaseTax          decimal.Decimal
	TransactionCount int
}

// AggregateExposure sums one jurisdiction's transactions for a single
// calendar year into the sales breakdown and base tax. txns must already be
// restricted to the jurisdiction and year under analysis. obligationStart is
// nil when the year has no nexus at all, in which case exposure sales and
// base tax are always zero regardless of gross sales.
func AggregateExposure(txns []Transaction, rule JurisdictionRule, obligationStart *time.Time) ExposureResult {
	result := ExposureResult{
		GrossSales:       decimal.Zero,
		TaxableSales:     decimal.Zero,
		ExemptSales:      decimal.Zero,
		DirectSales:      decimal.Zero,
		MarketplaceSales: decimal.Zero,
		ExposureSales:    decimal.Zero,
		BaseTax:          decimal.Zero,
	}

	for _, t := range txns {
		result.GrossSales = result.GrossSales.Add(t.GrossAmount)
		result.ExemptSales = result.ExemptSales.Add(t.ExemptAmount)
		result.TaxableSales = result.TaxableSales.Add(t.TaxableAmount())

		switch t.Channel {
		case ChannelMarketplace:
			result.MarketplaceSales = result.MarketplaceSales.Add(t.GrossAmount)
		default:
			result.DirectSales = result.DirectSales.Add(t.GrossAmount)
		}

		if obligationStart == nil || t.Date.Before(*obligationStart) {
			continue
		}
		if t.Channel == ChannelMarketplace && rule.MarketplaceExcludedFromLiability {
			continue
		}
		taxable := t.TaxableAmount()
		if taxable.IsZero() {
			continue
		}
		result.ExposureSales = result.ExposureSales.Add(taxable)
		result.TransactionCount++
	}

	result.BaseTax = result.ExposureSales.Mul(rule.CombinedTaxRate).RoundBank(2)
	return result
}
