package nexus

import (
	"sort"
	"time"
)

// YearObligation is the Obligation Scheduler's (C4) per-year output: the
// resolved nexus type and dates before exposure or tax has been computed.
type YearObligation struct {
	Year                int
	NexusType           NexusType
	NexusDate           *time.Time
	ObligationStartDate *time.Time
	FirstNexusYear      *int
}

// ScheduleYears resolves nexus type, nexus date, obligation start, and
// first-nexus-year stickiness for every year in years, given the economic
// crossings C3 found and an optional physical-nexus declaration.
// years need not be sorted; the result always reflects ascending
// processing order since stickiness is order-dependent.
func ScheduleYears(crossing map[int]yearCrossing, physical *PhysicalNexusDeclaration, years []int) map[int]YearObligation {
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)

	result := make(map[int]YearObligation, len(sorted))

	var economicDate *time.Time
	var economicObligation *time.Time
	var firstNexusYear *int

	for _, year := range sorted {
		y := year

		econFiresThisYear := false
		if c, ok := crossing[y]; ok && economicDate == nil {
			econFiresThisYear = true
			d := c.NexusDate
			o := c.ObligationStart
			economicDate = &d
			economicObligation = &o
		}

		physActive := physical != nil && !physical.NexusDate.After(endOfYear(y))
		hasEconomic := economicDate != nil

		if !hasEconomic && !physActive {
			result[y] = YearObligation{Year: y, NexusType: NexusNone}
			continue
		}

		var kind NexusType
		switch {
		case hasEconomic && physActive:
			kind = NexusBoth
		case hasEconomic:
			kind = NexusEconomic
		default:
			kind = NexusPhysical
		}

		if firstNexusYear == nil {
			fy := y
			firstNexusYear = &fy
		}

		nexusDate := earliestActiveDate(hasEconomic, economicDate, physActive, physical)

		var obligationStart time.Time
		if y == *firstNexusYear {
			obligationStart = firstYearObligation(econFiresThisYear, economicObligation, physActive, physical)
		} else {
			obligationStart = startOfYear(y)
		}

		fyCopy := *firstNexusYear
		result[y] = YearObligation{
			Year:                y,
			NexusType:           kind,
			NexusDate:           &nexusDate,
			ObligationStartDate: &obligationStart,
			FirstNexusYear:      &fyCopy,
		}
	}

	return result
}

func earliestActiveDate(hasEconomic bool, economicDate *time.Time, physActive bool, physical *PhysicalNexusDeclaration) time.Time {
	switch {
	case hasEconomic && physActive:
		if economicDate.Before(physical.NexusDate) {
			return *economicDate
		}
		return physical.NexusDate
	case hasEconomic:
		return *economicDate
	default:
		return physical.NexusDate
	}
}

func firstYearObligation(econFiresThisYear bool, economicObligation *time.Time, physActive bool, physical *PhysicalNexusDeclaration) time.Time {
	switch {
	case econFiresThisYear && physActive:
		if economicObligation.Before(physical.NexusDate) {
			return *economicObligation
		}
		return physical.NexusDate
	case econFiresThisYear:
		return *economicObligation
	default:
		return physical.NexusDate
	}
}
