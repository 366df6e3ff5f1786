// Package nexus implements the Nexus Determination & Liability Engine: a
// pure, deterministic function of a client's transaction history and
// per-jurisdiction rule tables that determines, for each of the 51 U.S.
// jurisdictions and each calendar year in the analysis window, whether
// economic or physical nexus was established, when the tax-collection
// obligation begins, and the resulting taxable exposure, base tax, interest,
// and penalties.
//
// The package has no I/O of its own. Rule tables, transaction rows, and
// physical-nexus declarations are supplied by the caller (see
// internal/config and internal/ingest for concrete loaders); Compute returns
// a fully materialized result set with no hidden dependency on wall-clock
// time beyond the caller-supplied as-of date.
//
// Basic usage:
//
//	registry, _ := nexus.LoadRegistry(entries)
//	result, err := nexus.Compute(nexus.Context{
//		Transactions: txns,
//		Registry:     registry,
//		AsOf:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
//	})
package nexus

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesChannel distinguishes a seller's own (direct) sales from sales made
// through a marketplace facilitator that collects and remits tax on the
// seller's behalf.
type SalesChannel string

const (
	// ChannelDirect is any sale not explicitly marked as marketplace.
	ChannelDirect SalesChannel = "direct"
	// ChannelMarketplace is a sale made through a marketplace facilitator.
	ChannelMarketplace SalesChannel = "marketplace"
)

// Transaction is an immutable, normalized sales record. Transactions flow
// out of the Transaction Normalizer (C2) and are consumed read-only by the
// rest of the engine; nothing in this package mutates a Transaction after
// Normalize produces it.
type Transaction struct {
	// Date is the calendar date of the sale, truncated to UTC midnight.
	Date time.Time
	// Jurisdiction is the destination (ship-to) jurisdiction of the sale.
	Jurisdiction Jurisdiction
	// GrossAmount is the full sale amount before any exemption.
	GrossAmount decimal.Decimal
	// Channel distinguishes direct from marketplace-facilitated sales.
	Channel SalesChannel
	// ExemptAmount is the portion of GrossAmount exempt from tax. It is
	// always 0 <= ExemptAmount <= GrossAmount.
	ExemptAmount decimal.Decimal
	// TransactionID is an opaque caller-supplied key, empty when absent.
	TransactionID string
	// InputIndex is the transaction's position in the original input
	// stream, used to break same-date ties deterministically.
	InputIndex int
}

// TaxableAmount is GrossAmount minus ExemptAmount: the portion of the sale
// actually subject to tax, before any marketplace-liability exclusion.
func (t Transaction) TaxableAmount() decimal.Decimal {
	return t.GrossAmount.Sub(t.ExemptAmount)
}

// IsFullyExempt reports whether none of the transaction's amount is
// taxable.
func (t Transaction) IsFullyExempt() bool {
	return t.TaxableAmount().Sign() <= 0
}

// LookbackMethod identifies one of the five statutory windows a
// jurisdiction uses to measure economic-nexus thresholds.
type LookbackMethod string

const (
	// LookbackCalendarPrevious measures the prior calendar year only.
	LookbackCalendarPrevious LookbackMethod = "calendar_previous"
	// LookbackCalendarCurrentOrPrevious measures the prior calendar year
	// and the running total within the current year.
	LookbackCalendarCurrentOrPrevious LookbackMethod = "calendar_current_or_previous"
	// LookbackRolling12Month measures a trailing 12-month window,
	// evaluated at each calendar month end.
	LookbackRolling12Month LookbackMethod = "rolling_12_month"
	// LookbackQuarterly4QPreceding measures the four calendar quarters
	// preceding (not including) the quarter under evaluation.
	LookbackQuarterly4QPreceding LookbackMethod = "quarterly_4q_preceding"
	// LookbackCTOctSepFiscal measures a single Oct 1–Sep 30 fiscal window
	// (Connecticut's statutory lookback).
	LookbackCTOctSepFiscal LookbackMethod = "ct_oct_sep_fiscal"
)

// ThresholdOperator describes how a jurisdiction's revenue and
// transaction-count sub-thresholds combine.
type ThresholdOperator string

const (
	// OperatorOr triggers nexus when either sub-threshold is met.
	OperatorOr ThresholdOperator = "or"
	// OperatorAnd triggers nexus only when both sub-thresholds are met
	// simultaneously on the same measurement.
	OperatorAnd ThresholdOperator = "and"
)

// InterestMethod identifies how interest accrues on unpaid base tax.
type InterestMethod string

const (
	InterestSimple          InterestMethod = "simple"
	InterestCompoundMonthly InterestMethod = "compound_monthly"
	InterestCompoundDaily   InterestMethod = "compound_daily"
)

// PenaltyBase identifies what a jurisdiction's penalty rate is applied to.
type PenaltyBase string

const (
	PenaltyOnBaseTax             PenaltyBase = "base_tax"
	PenaltyOnBaseTaxPlusInterest PenaltyBase = "base_tax_plus_interest"
)

// JurisdictionRule holds one jurisdiction's economic-nexus thresholds,
// lookback method, marketplace policy, and combined tax rate. A missing
// threshold (nil) means "no economic-nexus test of that kind" — never zero,
// since a rule with no data for a threshold must not silently default to
// testing against zero.
type JurisdictionRule struct {
	// RevenueThreshold is the statutory revenue threshold, or nil if this
	// jurisdiction does not test on revenue.
	RevenueThreshold *decimal.Decimal
	// TransactionThreshold is the statutory transaction-count threshold,
	// or nil if this jurisdiction does not test on transaction count.
	TransactionThreshold *int
	// Operator combines RevenueThreshold and TransactionThreshold when
	// both are defined.
	Operator ThresholdOperator
	// LookbackMethod is the statutory measurement window.
	LookbackMethod LookbackMethod
	// MarketplaceCountsTowardThreshold, when true (the default), counts
	// marketplace-channel sales in the threshold metric.
	MarketplaceCountsTowardThreshold bool
	// MarketplaceExcludedFromLiability, when true (the default), removes
	// marketplace-channel sales from the seller's own liability base.
	MarketplaceExcludedFromLiability bool
	// CombinedTaxRate is the state-plus-jurisdiction-average-local rate
	// applied to exposure sales.
	CombinedTaxRate decimal.Decimal
}

// HasRevenueThreshold reports whether this rule tests on revenue.
func (r JurisdictionRule) HasRevenueThreshold() bool {
	return r.RevenueThreshold != nil
}

// HasTransactionThreshold reports whether this rule tests on transaction
// count.
func (r JurisdictionRule) HasTransactionThreshold() bool {
	return r.TransactionThreshold != nil
}

// HasAnyThreshold reports whether economic nexus is possible at all under
// this rule — false when both thresholds are absent.
func (r JurisdictionRule) HasAnyThreshold() bool {
	return r.HasRevenueThreshold() || r.HasTransactionThreshold()
}

// InterestPenaltyConfig holds a jurisdiction's interest accrual method and
// penalty computation rules.
type InterestPenaltyConfig struct {
	// AnnualInterestRate is the nominal annual rate used by InterestMethod.
	AnnualInterestRate decimal.Decimal
	// InterestMethod selects simple, compound-monthly, or compound-daily
	// accrual.
	InterestMethod InterestMethod
	// PenaltyRate is applied to PenaltyAppliesTo to produce the raw
	// penalty, before min/max clamping.
	PenaltyRate decimal.Decimal
	// PenaltyAppliesTo selects whether the penalty rate applies to base
	// tax alone or to base tax plus accrued interest.
	PenaltyAppliesTo PenaltyBase
	// PenaltyMin, if non-nil, is the floor applied to the penalty whenever
	// base tax is positive, even when the raw penalty is zero.
	PenaltyMin *decimal.Decimal
	// PenaltyMax, if non-nil, is the ceiling applied to the penalty
	// whenever base tax is positive.
	PenaltyMax *decimal.Decimal
}

// JurisdictionEntry pairs a jurisdiction's nexus rule with its interest and
// penalty configuration, the unit of data the Rule Loader (C1) normalizes
// into a RuleRegistry.
type JurisdictionEntry struct {
	Jurisdiction Jurisdiction
	Rule         JurisdictionRule
	Penalty      InterestPenaltyConfig
}

// PhysicalNexusDeclaration records a user-supplied physical-presence nexus
// date for a jurisdiction. The informational flags play no role in
// computation; they exist for audit display only.
type PhysicalNexusDeclaration struct {
	Jurisdiction Jurisdiction
	NexusDate    time.Time
	HasEmployees bool
	HasInventory bool
	HasOffice    bool
	HasReps      bool
}

// NexusType classifies why a jurisdiction-year has a collection obligation.
type NexusType string

const (
	NexusNone     NexusType = "none"
	NexusEconomic NexusType = "economic"
	NexusPhysical NexusType = "physical"
	NexusBoth     NexusType = "both"
)

// YearResult is the engine's per-jurisdiction, per-year output record. See
// properties_test.go for the invariants every emitted record must satisfy.
type YearResult struct {
	Jurisdiction Jurisdiction
	Year         int

	NexusType           NexusType
	NexusDate           *time.Time
	ObligationStartDate *time.Time
	FirstNexusYear      *int

	GrossSales       decimal.Decimal
	TaxableSales     decimal.Decimal
	ExemptSales      decimal.Decimal
	DirectSales      decimal.Decimal
	MarketplaceSales decimal.Decimal
	ExposureSales    decimal.Decimal

	BaseTax            decimal.Decimal
	Interest           decimal.Decimal
	Penalties          decimal.Decimal
	EstimatedLiability decimal.Decimal

	TransactionCount int

	// Audit fields.
	InterestMethod       InterestMethod
	DaysOutstanding      int
	PenaltyRate          decimal.Decimal
	FirstTaxableSaleDate *time.Time
}

// HasNexus reports whether this record has any form of nexus.
func (y YearResult) HasNexus() bool {
	return y.NexusType != NexusNone
}

// ValidationSeverity classifies a ValidationIssue's impact on the row it
// was raised against.
type ValidationSeverity string

const (
	SeverityWarning ValidationSeverity = "warning"
	SeverityError   ValidationSeverity = "error"
)

// ValidationIssue is one row-level problem surfaced by the Transaction
// Normalizer (C2); row problems are collected here and never abort the
// computation.
type ValidationIssue struct {
	RowIndex int
	Field    string
	Message  string
	Severity ValidationSeverity
}
