package nexus

import "fmt"

// RuleRegistry maps a jurisdiction to its nexus rule and interest/penalty
// configuration. It is built once per engine run by LoadRegistry and is
// never mutated afterward: the orchestrator (C7) treats it as read-only
// collaborator data.
type RuleRegistry map[Jurisdiction]JurisdictionEntry

// Lookup returns the entry for j, wrapping the miss in a RuleMissingError
// so callers can errors.As it and decide whether to skip the jurisdiction
// or halt.
func (r RuleRegistry) Lookup(j Jurisdiction) (JurisdictionEntry, error) {
	entry, ok := r[j]
	if !ok {
		return JurisdictionEntry{}, &RuleMissingError{Jurisdiction: j}
	}
	return entry, nil
}

// Jurisdictions returns every jurisdiction with a loaded rule, used by the
// orchestrator to emit "no nexus" records for jurisdictions that have a
// rule but no transactions.
func (r RuleRegistry) Jurisdictions() []Jurisdiction {
	out := make([]Jurisdiction, 0, len(r))
	for j := range r {
		out = append(out, j)
	}
	return out
}

// LoadRegistry normalizes a set of jurisdiction rule entries into an
// in-memory RuleRegistry (C1). It fails with a *ConfigurationError for any
// entry that violates an internal invariant; configuration errors are
// fatal at load time and abort before any transaction is processed.
func LoadRegistry(entries []JurisdictionEntry) (RuleRegistry, error) {
	registry := make(RuleRegistry, len(entries))
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return nil, err
		}
		registry[entry.Jurisdiction] = entry
	}
	return registry, nil
}

func validateEntry(entry JurisdictionEntry) error {
	j := entry.Jurisdiction
	if j == "" {
		return &ConfigurationError{Jurisdiction: j, Reason: "jurisdiction code is required"}
	}

	rule := entry.Rule
	switch rule.Operator {
	case OperatorOr, OperatorAnd, "":
		// "" is tolerated only when at most one threshold is defined,
		// checked below; it collapses to the single test.
	default:
		return &ConfigurationError{Jurisdiction: j, Reason: fmt.Sprintf("unknown operator %q", rule.Operator)}
	}

	if rule.Operator == OperatorAnd && !(rule.HasRevenueThreshold() && rule.HasTransactionThreshold()) {
		return &ConfigurationError{
			Jurisdiction: j,
			Reason:       "operator \"and\" requires both revenue and transaction thresholds to be defined",
		}
	}
	if rule.Operator == "" && rule.HasRevenueThreshold() && rule.HasTransactionThreshold() {
		return &ConfigurationError{
			Jurisdiction: j,
			Reason:       "an operator is required when both revenue and transaction thresholds are defined",
		}
	}

	if rule.HasAnyThreshold() {
		switch rule.LookbackMethod {
		case LookbackCalendarPrevious, LookbackCalendarCurrentOrPrevious,
			LookbackRolling12Month, LookbackQuarterly4QPreceding, LookbackCTOctSepFiscal:
		default:
			return &ConfigurationError{Jurisdiction: j, Reason: fmt.Sprintf("unknown lookback method %q", rule.LookbackMethod)}
		}
	}

	if rule.CombinedTaxRate.IsNegative() {
		return &ConfigurationError{Jurisdiction: j, Reason: "combined tax rate cannot be negative"}
	}

	penalty := entry.Penalty
	switch penalty.InterestMethod {
	case InterestSimple, InterestCompoundMonthly, InterestCompoundDaily, "":
	default:
		return &ConfigurationError{Jurisdiction: j, Reason: fmt.Sprintf("unknown interest method %q", penalty.InterestMethod)}
	}
	switch penalty.PenaltyAppliesTo {
	case PenaltyOnBaseTax, PenaltyOnBaseTaxPlusInterest, "":
	default:
		return &ConfigurationError{Jurisdiction: j, Reason: fmt.Sprintf("unknown penalty base %q", penalty.PenaltyAppliesTo)}
	}
	if penalty.PenaltyMin != nil && penalty.PenaltyMax != nil && penalty.PenaltyMin.GreaterThan(*penalty.PenaltyMax) {
		return &ConfigurationError{Jurisdiction: j, Reason: "penalty_min exceeds penalty_max"}
	}

	return nil
}
