package booking

import (
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/models"
)

// ComputePrice derives the total price in minor currency units for a stay of
// [start,end) at unitPrice per period.
//
// Nightly stays count whole calendar days, with a same-day booking coerced to
// one night. Weekly and monthly stays round the day count up to whole periods.
// A non-positive span outside the nightly same-day case is a validation error,
// never silently clamped.
func ComputePrice(unitPrice int64, period models.PricingPeriod, start, end time.Time) (int64, error) {
	if unitPrice <= 0 {
		return 0, apperr.Validation("price", "unit price must be positive")
	}

	days := Days(start, end)
	if days < 0 {
		return 0, apperr.Validation("end_date", "end date precedes start date")
	}

	var units int
	switch period {
	case models.PeriodNightly:
		units = days
		if units == 0 {
			units = 1 // same-day booking still costs one night
		}
	case models.PeriodWeekly:
		units = ceilDiv(days, 7)
	case models.PeriodMonthly:
		units = ceilDiv(days, 30)
	default:
		return 0, apperr.Validation("pricing_period", "unrecognized pricing period "+string(period))
	}

	if units <= 0 {
		return 0, apperr.Validation("end_date", "stay is too short for the pricing period")
	}

	return unitPrice * int64(units), nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
