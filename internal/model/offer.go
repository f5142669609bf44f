package model

import "time"

// Offer is a supplier's priced energy offer (CTE).
type Offer struct {
	ID         string    `json:"id" yaml:"id"`
	AgencyID   string    `json:"agency_id" yaml:"agency_id"`
	Supplier   string    `json:"supplier" yaml:"supplier"`
	Name       string    `json:"name" yaml:"name"`
	Commodity  Commodity `json:"commodity" yaml:"commodity"`
	UnitPrice  float64   `json:"unit_price" yaml:"unit_price"`
	F1Price    float64   `json:"f1_price,omitempty" yaml:"f1_price"`
	F2Price    float64   `json:"f2_price,omitempty" yaml:"f2_price"`
	F3Price    float64   `json:"f3_price,omitempty" yaml:"f3_price"`
	FixedFee   float64   `json:"fixed_fee" yaml:"fixed_fee"` // per month
	ValidUntil time.Time `json:"valid_until,omitempty" yaml:"valid_until"`
}

// HasBandPrices reports whether the offer prices all three time bands.
func (o *Offer) HasBandPrices() bool {
	return o.F1Price > 0 && o.F2Price > 0 && o.F3Price > 0
}

// Expired reports whether the offer's validity ended before now.
func (o *Offer) Expired(now time.Time) bool {
	return !o.ValidUntil.IsZero() && o.ValidUntil.Before(now)
}

// CanvasOffer is a telephony/connectivity price-list entry.
type CanvasOffer struct {
	ID         string  `json:"id" yaml:"id"`
	AgencyID   string  `json:"agency_id" yaml:"agency_id"`
	Provider   string  `json:"provider" yaml:"provider"`
	Name       string  `json:"name" yaml:"name"`
	Technology string  `json:"technology,omitempty" yaml:"technology"`
	MonthlyFee float64 `json:"monthly_fee" yaml:"monthly_fee"`
}
