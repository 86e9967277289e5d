package location

import (
	"fmt"
	"math"

	"github.com/bwise1/ride_pinpoint/internal/model"
)

// Tariff prices a trip as BasePrice + km * Rates[tier].
type Tariff struct {
	BasePrice      float64
	Rates          map[model.ServiceTier]float64
	CurrencySymbol string
}

func DefaultTariff() Tariff {
	return Tariff{
		BasePrice: 3.50,
		Rates: map[model.ServiceTier]float64{
			model.TierEconomy:  1.20,
			model.TierStandard: 1.60,
			model.TierPremium:  2.40,
		},
		CurrencySymbol: "$",
	}
}

// Fare is rounded to cents.
func (t Tariff) Fare(distanceMeters float64, tier model.ServiceTier) (float64, error) {
	if distanceMeters < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}
	rate, ok := t.Rates[tier]
	if !ok {
		return 0, fmt.Errorf("no rate for service tier %q", tier)
	}
	fare := t.BasePrice + (distanceMeters/1000.0)*rate
	return math.Round(fare*100) / 100, nil
}

func (t Tariff) FormatFare(fare float64) string {
	return fmt.Sprintf("%s%.2f", t.CurrencySymbol, fare)
}

// FormatDistance shows metres below one kilometre.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", math.Max(meters, 0))
	}
	return fmt.Sprintf("%.1f km", meters/1000.0)
}
