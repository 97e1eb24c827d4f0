package fx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToReferencePassesThroughMatchingCurrency(t *testing.T) {
	table := NewStaticTable("USD", map[string]float64{"EUR": 1.1})

	got, err := table.ToReference("USD", decimal.NewFromInt(100))

	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(100)))
}

func TestToReferenceConvertsUsingConfiguredRate(t *testing.T) {
	table := NewStaticTable("USD", map[string]float64{"EUR": 1.1})

	got, err := table.ToReference("EUR", decimal.NewFromInt(100))

	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromFloat(110)))
}

func TestToReferenceErrorsOnUnknownCurrency(t *testing.T) {
	table := NewStaticTable("USD", map[string]float64{"EUR": 1.1})

	_, err := table.ToReference("JPY", decimal.NewFromInt(100))

	assert.Error(t, err)
}
