package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datesFromIntervals(start time.Time, intervals ...int) []time.Time {
	dates := []time.Time{start}
	cur := start
	for _, d := range intervals {
		cur = cur.AddDate(0, 0, d)
		dates = append(dates, cur)
	}
	return dates
}

func TestDetectFrequencyFindsMonthlyPattern(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := datesFromIntervals(start, 30, 31, 29, 30)

	freq, ok := detectFrequency(dates)

	assert.True(t, ok)
	assert.Equal(t, 30, freq)
}

func TestDetectFrequencyRejectsIrregularDates(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := datesFromIntervals(start, 5, 47, 12, 90)

	_, ok := detectFrequency(dates)

	assert.False(t, ok)
}

func TestDetectFrequencyRequiresAtLeastTwoDates(t *testing.T) {
	_, ok := detectFrequency([]time.Time{time.Now()})

	assert.False(t, ok)
}
