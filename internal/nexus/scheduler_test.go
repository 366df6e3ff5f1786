package nexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleYears_EconomicOnlyIsStickyAndSnapsToJanFirst(t *testing.T) {
	nexusDate := asOfDate(2023, 4, 10)
	obligationStart := asOfDate(2023, 5, 1)
	crossing := map[int]yearCrossing{2023: {NexusDate: nexusDate, ObligationStart: obligationStart}}

	result := ScheduleYears(crossing, nil, []int{2022, 2023, 2024})

	assert.Equal(t, NexusNone, result[2022].NexusType)

	y2023 := result[2023]
	require.Equal(t, NexusEconomic, y2023.NexusType)
	assert.Equal(t, obligationStart, *y2023.ObligationStartDate)
	assert.Equal(t, 2023, *y2023.FirstNexusYear)

	y2024 := result[2024]
	require.Equal(t, NexusEconomic, y2024.NexusType)
	assert.Equal(t, startOfYear(2024), *y2024.ObligationStartDate)
	assert.Equal(t, 2023, *y2024.FirstNexusYear)
}

func TestScheduleYears_PhysicalOnlyEstablishesOnDeclaredDate(t *testing.T) {
	declared := asOfDate(2023, 3, 1)
	physical := &PhysicalNexusDeclaration{Jurisdiction: "GA", NexusDate: declared, HasEmployees: true}

	result := ScheduleYears(map[int]yearCrossing{}, physical, []int{2023, 2024})

	y2023 := result[2023]
	require.Equal(t, NexusPhysical, y2023.NexusType)
	assert.Equal(t, declared, *y2023.ObligationStartDate)

	y2024 := result[2024]
	require.Equal(t, NexusPhysical, y2024.NexusType)
	assert.Equal(t, startOfYear(2024), *y2024.ObligationStartDate)
}

func TestScheduleYears_EconomicAndPhysicalCombineToBoth(t *testing.T) {
	econDate := asOfDate(2022, 6, 1)
	econObligation := asOfDate(2022, 7, 1)
	crossing := map[int]yearCrossing{2022: {NexusDate: econDate, ObligationStart: econObligation}}

	physDate := asOfDate(2022, 2, 1)
	physical := &PhysicalNexusDeclaration{Jurisdiction: "TX", NexusDate: physDate}

	result := ScheduleYears(crossing, physical, []int{2022})

	y := result[2022]
	require.Equal(t, NexusBoth, y.NexusType)
	assert.Equal(t, physDate, *y.NexusDate)
	assert.Equal(t, physDate, *y.ObligationStartDate)
}

func TestScheduleYears_PhysicalNexusNeverReverts(t *testing.T) {
	physical := &PhysicalNexusDeclaration{Jurisdiction: "NV", NexusDate: asOfDate(2023, 6, 1)}
	result := ScheduleYears(map[int]yearCrossing{}, physical, []int{2023, 2024, 2025})

	for _, y := range []int{2023, 2024, 2025} {
		assert.NotEqual(t, NexusNone, result[y].NexusType, "year %d should retain nexus", y)
	}
}

func TestScheduleYears_NoCrossingNoPhysicalMeansNone(t *testing.T) {
	result := ScheduleYears(map[int]yearCrossing{}, nil, []int{2023})
	assert.Equal(t, NexusNone, result[2023].NexusType)
	assert.Nil(t, result[2023].FirstNexusYear)
}
