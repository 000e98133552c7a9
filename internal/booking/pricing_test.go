package booking

import (
	"testing"

	"rental-service/internal/apperr"
	"rental-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePrice(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		period    models.PricingPeriod
		startDay  int
		endDay    int
		want      int64
	}{
		{"nightly three nights", 100, models.PeriodNightly, 0, 3, 300},
		{"nightly same day counts one night", 100, models.PeriodNightly, 0, 0, 100},
		{"nightly single night", 100, models.PeriodNightly, 0, 1, 100},
		{"weekly exact week", 700, models.PeriodWeekly, 0, 7, 700},
		{"weekly ten days rounds up", 700, models.PeriodWeekly, 0, 10, 1400},
		{"weekly one day is one week", 700, models.PeriodWeekly, 0, 1, 700},
		{"monthly exact month", 1000, models.PeriodMonthly, 0, 30, 1000},
		{"monthly forty five days rounds up", 1000, models.PeriodMonthly, 0, 45, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePrice(tt.unitPrice, tt.period, day(tt.startDay), day(tt.endDay))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePriceValidation(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		period    models.PricingPeriod
		startDay  int
		endDay    int
	}{
		{"zero unit price", 0, models.PeriodNightly, 0, 3},
		{"negative unit price", -5, models.PeriodNightly, 0, 3},
		{"end before start", 100, models.PeriodNightly, 3, 0},
		{"unknown period", 100, models.PricingPeriod("hourly"), 0, 3},
		{"weekly zero days", 700, models.PeriodWeekly, 0, 0},
		{"monthly zero days", 1000, models.PeriodMonthly, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePrice(tt.unitPrice, tt.period, day(tt.startDay), day(tt.endDay))
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestComputePriceNeverSilentlyClamps(t *testing.T) {
	// A weekly stay of zero days must error, not bill zero or one period.
	total, err := ComputePrice(700, models.PeriodWeekly, day(5), day(5))
	assert.Error(t, err)
	assert.Zero(t, total)
}
