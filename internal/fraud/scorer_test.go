package fraud

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsRoundAmount(t *testing.T) {
	cases := []struct {
		name  string
		total string
		want  bool
	}{
		{"whole number above threshold", "5000", true},
		{"whole number just above threshold", "1001", true},
		{"whole number at threshold", "1000", false},
		{"fractional amount", "5000.50", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, err := decimal.NewFromString(tc.total)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, isRoundAmount(total))
		})
	}
}

func TestBand(t *testing.T) {
	th := Thresholds{Medium: 20, High: 40, Critical: 60}

	assert.Equal(t, "low", Band(0, th))
	assert.Equal(t, "low", Band(19, th))
	assert.Equal(t, "medium", Band(20, th))
	assert.Equal(t, "medium", Band(39, th))
	assert.Equal(t, "high", Band(40, th))
	assert.Equal(t, "high", Band(59, th))
	assert.Equal(t, "critical", Band(60, th))
}
