package nexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateExposure_NilObligationStartYieldsZeroExposure(t *testing.T) {
	rule := JurisdictionRule{CombinedTaxRate: d("0.08")}
	txns := []Transaction{txn(asOfDate(2023, 1, 1), "1000", ChannelDirect, 0)}

	result := AggregateExposure(txns, rule, nil)

	assert.True(t, result.GrossSales.Equal(d("1000")))
	assert.True(t, result.ExposureSales.IsZero())
	assert.True(t, result.BaseTax.IsZero())
}

func TestAggregateExposure_OnlySalesOnOrAfterObligationStartCountTowardExposure(t *testing.T) {
	rule := JurisdictionRule{CombinedTaxRate: d("0.10")}
	start := asOfDate(2023, 5, 1)
	txns := []Transaction{
		txn(asOfDate(2023, 3, 1), "1000", ChannelDirect, 0),
		txn(asOfDate(2023, 5, 1), "2000", ChannelDirect, 1),
		txn(asOfDate(2023, 6, 1), "3000", ChannelDirect, 2),
	}

	result := AggregateExposure(txns, rule, &start)

	assert.True(t, result.GrossSales.Equal(d("6000")))
	assert.True(t, result.ExposureSales.Equal(d("5000")))
	assert.True(t, result.BaseTax.Equal(d("500.00")))
}

func TestAggregateExposure_MarketplaceExcludedFromLiability(t *testing.T) {
	rule := JurisdictionRule{CombinedTaxRate: d("0.10"), MarketplaceExcludedFromLiability: true}
	start := asOfDate(2023, 1, 1)
	txns := []Transaction{
		txn(asOfDate(2023, 2, 1), "1000", ChannelDirect, 0),
		txn(asOfDate(2023, 2, 1), "5000", ChannelMarketplace, 1),
	}

	result := AggregateExposure(txns, rule, &start)

	assert.True(t, result.MarketplaceSales.Equal(d("5000")))
	assert.True(t, result.ExposureSales.Equal(d("1000")))
	assert.True(t, result.BaseTax.Equal(d("100.00")))
}

func TestAggregateExposure_ExemptAmountReducesTaxableNotGross(t *testing.T) {
	rule := JurisdictionRule{CombinedTaxRate: d("0.10")}
	start := asOfDate(2023, 1, 1)
	txns := []Transaction{
		{Date: asOfDate(2023, 2, 1), Jurisdiction: "CA", GrossAmount: d("1000"), ExemptAmount: d("400"), Channel: ChannelDirect},
	}

	result := AggregateExposure(txns, rule, &start)

	assert.True(t, result.GrossSales.Equal(d("1000")))
	assert.True(t, result.TaxableSales.Equal(d("600")))
	assert.True(t, result.ExposureSales.Equal(d("600")))
}
