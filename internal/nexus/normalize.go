package nexus

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts lists the date formats Normalize tolerates, tried in order.
// ISO-8601 is tried first since it is unambiguous; MM/DD/YYYY follows for
// US-sourced exports.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// RawRow is an already-column-mapped transaction row, as produced by a
// caller-side CSV/column-detection front end (internal/ingest implements
// one). Every field is a string so the caller never has to pre-parse
// dates, amounts, or booleans — that parsing and its error handling is
// exactly what Normalize exists to centralize.
type RawRow struct {
	Date          string
	Jurisdiction  string
	Amount        string
	Channel       string
	IsTaxable     *bool
	ExemptAmount  string
	TransactionID string
}

// NormalizeResult is the output of Normalize: the cleaned, typed
// transactions that survived validation, plus the full validation report
// for every row that was dropped or merely flagged.
type NormalizeResult struct {
	Transactions []Transaction
	Report       []ValidationIssue
}

// Normalize cleans and types one raw transaction stream into the typed
// Transaction contract the rest of the engine consumes (C2). Row-level
// problems never abort the computation: they are dropped with a
// ValidationIssue recorded in the returned report.
func Normalize(rows []RawRow, whitelist JurisdictionSet, asOf time.Time) NormalizeResult {
	result := NormalizeResult{
		Transactions: make([]Transaction, 0, len(rows)),
		Report:       make([]ValidationIssue, 0),
	}

	for i, row := range rows {
		txn, issues, ok := normalizeRow(i, row, whitelist, asOf)
		result.Report = append(result.Report, issues...)
		if ok {
			result.Transactions = append(result.Transactions, txn)
		}
	}

	return result
}

func normalizeRow(rowIndex int, row RawRow, whitelist JurisdictionSet, asOf time.Time) (Transaction, []ValidationIssue, bool) {
	var issues []ValidationIssue

	// Step 1: drop rows missing any required field.
	if strings.TrimSpace(row.Date) == "" {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "date", Message: "missing date", Severity: SeverityError}}, false
	}
	if strings.TrimSpace(row.Jurisdiction) == "" {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "jurisdiction", Message: "missing jurisdiction", Severity: SeverityError}}, false
	}
	if strings.TrimSpace(row.Amount) == "" {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "sales_amount", Message: "missing amount", Severity: SeverityError}}, false
	}
	if strings.TrimSpace(row.Channel) == "" {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "sales_channel", Message: "missing channel", Severity: SeverityError}}, false
	}

	// Step 2: parse date, reject future dates.
	date, err := parseDate(row.Date)
	if err != nil {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "date", Message: err.Error(), Severity: SeverityError}}, false
	}
	if date.After(asOf) {
		return Transaction{}, []ValidationIssue{(&rowError{rowIndex, "date", fmt.Errorf("%w: %s is after as-of date %s", ErrFutureDate, date.Format("2006-01-02"), asOf.Format("2006-01-02"))}).toIssue()}, false
	}

	// Step 3: upper-case and validate jurisdiction.
	jurisdiction := Jurisdiction(strings.ToUpper(strings.TrimSpace(row.Jurisdiction)))
	if !whitelist.Contains(jurisdiction) {
		return Transaction{}, []ValidationIssue{(&rowError{rowIndex, "jurisdiction", fmt.Errorf("%w: %q", ErrUnknownJurisdiction, row.Jurisdiction)}).toIssue()}, false
	}

	// Step 4: coerce amount to non-negative money.
	amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
	if err != nil {
		return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "sales_amount", Message: fmt.Sprintf("invalid amount: %v", err), Severity: SeverityError}}, false
	}
	if amount.IsNegative() {
		return Transaction{}, []ValidationIssue{(&rowError{rowIndex, "sales_amount", fmt.Errorf("%w: negative amount %s", ErrNegativeAmount, amount)}).toIssue()}, false
	}
	if amount.IsZero() {
		issues = append(issues, warningIssue(rowIndex, "sales_amount", "amount is zero"))
	}

	// Step 5: resolve taxability via the three-tier policy.
	var exempt decimal.Decimal
	exemptStr := strings.TrimSpace(row.ExemptAmount)
	switch {
	case exemptStr != "":
		exempt, err = decimal.NewFromString(exemptStr)
		if err != nil {
			return Transaction{}, []ValidationIssue{{RowIndex: rowIndex, Field: "exempt_amount", Message: fmt.Sprintf("invalid exempt amount: %v", err), Severity: SeverityError}}, false
		}
	case row.IsTaxable != nil && !*row.IsTaxable:
		exempt = amount
	default:
		exempt = decimal.Zero
	}
	if exempt.IsNegative() || exempt.GreaterThan(amount) {
		return Transaction{}, []ValidationIssue{(&rowError{rowIndex, "exempt_amount", fmt.Errorf("%w: exempt amount %s outside [0, %s]", ErrNegativeAmount, exempt, amount)}).toIssue()}, false
	}

	// Step 6: channel classification.
	channel := ChannelDirect
	rawChannel := strings.ToLower(strings.TrimSpace(row.Channel))
	if rawChannel == string(ChannelMarketplace) {
		channel = ChannelMarketplace
	} else if rawChannel != string(ChannelDirect) {
		issues = append(issues, warningIssue(rowIndex, "sales_channel", fmt.Sprintf("unrecognized channel %q, treated as direct", row.Channel)))
	}

	txn := Transaction{
		Date:          date,
		Jurisdiction:  jurisdiction,
		GrossAmount:   amount,
		Channel:       channel,
		ExemptAmount:  exempt,
		TransactionID: row.TransactionID,
		InputIndex:    rowIndex,
	}
	return txn, issues, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}
