// Package ingest reads caller-supplied transaction exports from CSV and
// maps them into the nexus package's column-agnostic RawRow shape. It is
// the only place in the module that parses CSV (rule and physical-nexus
// YAML files are read by internal/config): everything downstream of
// ReadCSV works with typed Go values.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/saltworks/nexusengine/internal/nexus"
)

// columnAliases maps each RawRow field to the header names a real-world
// export might use for it, checked case-insensitively. The first alias
// found in the header row wins.
var columnAliases = map[string][]string{
	"date":           {"date", "transaction_date", "txn_date", "sale_date"},
	"jurisdiction":   {"jurisdiction", "state", "jurisdiction_code", "ship_to_state"},
	"amount":         {"amount", "sales_amount", "gross_amount", "gross"},
	"channel":        {"channel", "sales_channel"},
	"taxable":        {"taxable", "is_taxable"},
	"exempt_amount":  {"exempt_amount", "exemption_amount"},
	"transaction_id": {"transaction_id", "id", "txn_id"},
}

// requiredColumns must be present in the header for ReadCSV to proceed;
// the rest are optional and default to their zero value when absent.
var requiredColumns = []string{"date", "jurisdiction", "amount", "channel"}

// ReadCSV parses r as a CSV transaction export and maps it to RawRow
// values, auto-detecting column order from the header row via
// columnAliases. It returns an error only for structural problems — a
// malformed header or malformed CSV — never for row-level data problems,
// which nexus.Normalize reports as validation issues instead.
func ReadCSV(r io.Reader) ([]nexus.RawRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("ingest: empty CSV input")
		}
		return nil, fmt.Errorf("ingest: reading header: %w", err)
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	rows := make([]nexus.RawRow, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, mapRow(record, columns))
	}

	return rows, nil
}

// resolveColumns finds the record index of each RawRow field by matching
// header cells against columnAliases, case-insensitively.
func resolveColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	columns := make(map[string]int)
	for field, aliases := range columnAliases {
		for i, h := range normalized {
			if containsAlias(aliases, h) {
				columns[field] = i
				break
			}
		}
	}

	var missing []string
	for _, field := range requiredColumns {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("ingest: missing required column(s): %s", strings.Join(missing, ", "))
	}

	return columns, nil
}

func containsAlias(aliases []string, h string) bool {
	for _, a := range aliases {
		if a == h {
			return true
		}
	}
	return false
}

func mapRow(record []string, columns map[string]int) nexus.RawRow {
	get := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	row := nexus.RawRow{
		Date:          get("date"),
		Jurisdiction:  get("jurisdiction"),
		Amount:        get("amount"),
		Channel:       get("channel"),
		ExemptAmount:  get("exempt_amount"),
		TransactionID: get("transaction_id"),
	}

	if raw := strings.TrimSpace(get("taxable")); raw != "" {
		if b, err := parseBool(raw); err == nil {
			row.IsTaxable = &b
		}
	}

	return row
}

// parseBool accepts the handful of truthy/falsy spellings a spreadsheet
// export is likely to contain, beyond what strconv.ParseBool allows.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return strconv.ParseBool(raw)
	}
}
