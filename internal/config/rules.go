// Package config loads jurisdiction rule tables and physical-nexus
// declarations from YAML files on disk and hands them to internal/nexus's
// in-memory constructors. It reads these files from disk itself; the
// transaction CSV is opened by internal/reportcli and parsed by
// internal/ingest.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/saltworks/nexusengine/internal/nexus"
)

// ruleFile mirrors the on-disk YAML shape: a flat list of jurisdiction
// entries, each with its threshold rule and interest/penalty config.
type ruleFile struct {
	Jurisdictions []ruleEntry `yaml:"jurisdictions"`
}

type ruleEntry struct {
	Jurisdiction string `yaml:"jurisdiction"`

	RevenueThreshold     *string `yaml:"revenue_threshold"`
	TransactionThreshold *int    `yaml:"transaction_threshold"`
	Operator             string  `yaml:"operator"`
	LookbackMethod       string  `yaml:"lookback_method"`

	MarketplaceCountsTowardThreshold *bool  `yaml:"marketplace_counts_toward_threshold"`
	MarketplaceExcludedFromLiability *bool  `yaml:"marketplace_excluded_from_liability"`
	CombinedTaxRate                  string `yaml:"combined_tax_rate"`

	AnnualInterestRate string  `yaml:"annual_interest_rate"`
	InterestMethod     string  `yaml:"interest_method"`
	PenaltyRate        string  `yaml:"penalty_rate"`
	PenaltyAppliesTo   string  `yaml:"penalty_applies_to"`
	PenaltyMin         *string `yaml:"penalty_min"`
	PenaltyMax         *string `yaml:"penalty_max"`
}

// LoadRegistryFile reads a YAML jurisdiction rule table from path and
// normalizes it into a RuleRegistry via nexus.LoadRegistry (C1). A missing
// or unreadable file, a malformed decimal, or an invariant violation all
// surface as an error — rule-table problems are always fatal at load time,
// never row-level warnings.
func LoadRegistryFile(path string) (nexus.RuleRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	entries := make([]nexus.JurisdictionEntry, 0, len(file.Jurisdictions))
	for _, re := range file.Jurisdictions {
		entry, err := toJurisdictionEntry(re)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", re.Jurisdiction, err)
		}
		entries = append(entries, entry)
	}

	return nexus.LoadRegistry(entries)
}

func toJurisdictionEntry(re ruleEntry) (nexus.JurisdictionEntry, error) {
	rule := nexus.JurisdictionRule{
		Operator:                         nexus.ThresholdOperator(re.Operator),
		LookbackMethod:                   nexus.LookbackMethod(re.LookbackMethod),
		MarketplaceCountsTowardThreshold: boolOrDefault(re.MarketplaceCountsTowardThreshold, true),
		MarketplaceExcludedFromLiability: boolOrDefault(re.MarketplaceExcludedFromLiability, true),
	}

	if re.RevenueThreshold != nil {
		d, err := parseDecimal(*re.RevenueThreshold, "revenue_threshold")
		if err != nil {
			return nexus.JurisdictionEntry{}, err
		}
		rule.RevenueThreshold = &d
	}
	rule.TransactionThreshold = re.TransactionThreshold

	rate, err := parseDecimal(re.CombinedTaxRate, "combined_tax_rate")
	if err != nil {
		return nexus.JurisdictionEntry{}, err
	}
	rule.CombinedTaxRate = rate

	penalty := nexus.InterestPenaltyConfig{
		InterestMethod:   nexus.InterestMethod(re.InterestMethod),
		PenaltyAppliesTo: nexus.PenaltyBase(re.PenaltyAppliesTo),
	}
	if penalty.AnnualInterestRate, err = parseDecimalOrZero(re.AnnualInterestRate, "annual_interest_rate"); err != nil {
		return nexus.JurisdictionEntry{}, err
	}
	if penalty.PenaltyRate, err = parseDecimalOrZero(re.PenaltyRate, "penalty_rate"); err != nil {
		return nexus.JurisdictionEntry{}, err
	}
	if re.PenaltyMin != nil {
		d, err := parseDecimal(*re.PenaltyMin, "penalty_min")
		if err != nil {
			return nexus.JurisdictionEntry{}, err
		}
		penalty.PenaltyMin = &d
	}
	if re.PenaltyMax != nil {
		d, err := parseDecimal(*re.PenaltyMax, "penalty_max")
		if err != nil {
			return nexus.JurisdictionEntry{}, err
		}
		penalty.PenaltyMax = &d
	}

	return nexus.JurisdictionEntry{
		Jurisdiction: nexus.Jurisdiction(re.Jurisdiction),
		Rule:         rule,
		Penalty:      penalty,
	}, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}

func parseDecimalOrZero(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(raw, field)
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// physicalFile mirrors the on-disk YAML shape for physical-nexus
// declarations.
type physicalFile struct {
	Declarations []physicalEntry `yaml:"physical_nexus"`
}

type physicalEntry struct {
	Jurisdiction string `yaml:"jurisdiction"`
	NexusDate    string `yaml:"nexus_date"`
	HasEmployees bool   `yaml:"has_employees"`
	HasInventory bool   `yaml:"has_inventory"`
	HasOffice    bool   `yaml:"has_office"`
	HasReps      bool   `yaml:"has_reps"`
}

// LoadPhysicalNexusFile reads a YAML physical-nexus declaration file,
// keyed by jurisdiction for the Obligation Scheduler (C4).
func LoadPhysicalNexusFile(path string) (map[nexus.Jurisdiction]nexus.PhysicalNexusDeclaration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var file physicalFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	out := make(map[nexus.Jurisdiction]nexus.PhysicalNexusDeclaration, len(file.Declarations))
	for _, pe := range file.Declarations {
		date, err := time.Parse("2006-01-02", pe.NexusDate)
		if err != nil {
			return nil, fmt.Errorf("config: %s: invalid nexus_date %q: %w", pe.Jurisdiction, pe.NexusDate, err)
		}
		j := nexus.Jurisdiction(pe.Jurisdiction)
		out[j] = nexus.PhysicalNexusDeclaration{
			Jurisdiction: j,
			NexusDate:    date,
			HasEmployees: pe.HasEmployees,
			HasInventory: pe.HasInventory,
			HasOffice:    pe.HasOffice,
			HasReps:      pe.HasReps,
		}
	}
	return out, nil
}
