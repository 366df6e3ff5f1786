package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_BasicColumns(t *testing.T) {
	input := "Date,State,Amount,Channel\n2023-01-15,CA,125000.00,direct\n2023-04-05,ca,125000.00,marketplace\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2023-01-15", rows[0].Date)
	assert.Equal(t, "CA", rows[0].Jurisdiction)
	assert.Equal(t, "125000.00", rows[0].Amount)
	assert.Equal(t, "direct", rows[0].Channel)
	assert.Equal(t, "marketplace", rows[1].Channel)
}

func TestReadCSV_AliasedHeaders(t *testing.T) {
	input := "transaction_date,jurisdiction_code,gross_amount,sales_channel,is_taxable,exemption_amount,txn_id\n" +
		"2023-06-01,NY,500.00,direct,no,500.00,abc123\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "NY", row.Jurisdiction)
	assert.Equal(t, "500.00", row.ExemptAmount)
	assert.Equal(t, "abc123", row.TransactionID)
	require.NotNil(t, row.IsTaxable)
	assert.False(t, *row.IsTaxable)
}

func TestReadCSV_MissingRequiredColumn(t *testing.T) {
	input := "Date,State,Channel\n2023-01-15,CA,direct\n"

	_, err := ReadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestReadCSV_EmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestParseBool_AcceptsCommonSpellings(t *testing.T) {
	cases := map[string]bool{
		"true": true, "false": false,
		"y": true, "n": false,
		"yes": true, "no": false,
		"Y": true, "NO": false,
	}
	for raw, want := range cases {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseBool_RejectsGarbage(t *testing.T) {
	_, err := parseBool("maybe")
	assert.Error(t, err)
}
