// Package compare prices a customer's current supply against the agency's
// offers. All money math uses shopspring/decimal.
package compare

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/agency-crm/internal/model"
)

// ErrNotComparable is returned when a bill lacks the commodity or consumption
// needed to price it.
var ErrNotComparable = eris.New("compare: bill has no comparable supply")

var (
	months  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Comparison is one offer priced against the current supply, per year.
type Comparison struct {
	Offer         model.Offer     `json:"offer"`
	CurrentAnnual decimal.Decimal `json:"current_annual"`
	OfferAnnual   decimal.Decimal `json:"offer_annual"`
	Savings       decimal.Decimal `json:"savings"`
	SavingsPct    decimal.Decimal `json:"savings_pct"`
	TimeBands     bool            `json:"time_bands"`
}

// usage is the consumption of a bill split into F1/F2/F3 bands.
type usage struct {
	total      decimal.Decimal
	f1, f2, f3 decimal.Decimal
}

func (u usage) hasBands() bool {
	return u.f1.Add(u.f2).Add(u.f3).IsPositive()
}

func usageOf(bill *model.ExtractedBill) usage {
	u := usage{
		total: decimal.NewFromFloat(bill.TotalConsumption),
		f1:    decimal.NewFromFloat(bill.F1),
		f2:    decimal.NewFromFloat(bill.F2),
		f3:    decimal.NewFromFloat(bill.F3),
	}
	if !u.total.IsPositive() {
		u.total = u.f1.Add(u.f2).Add(u.f3)
	}
	return u
}

// CurrentAnnualCost is consumption × detected unit price plus twelve months
// of the detected fixed fee.
func CurrentAnnualCost(bill *model.ExtractedBill) decimal.Decimal {
	u := usageOf(bill)
	return u.total.Mul(decimal.NewFromFloat(bill.DetectedUnitPrice)).
		Add(months.Mul(decimal.NewFromFloat(bill.DetectedFixedFee))).
		Round(2)
}

// CompareEnergy prices every valid offer for the bill's commodity and returns
// them sorted by savings, best first. Band prices are used when both the bill
// and the offer carry F1/F2/F3 values.
func CompareEnergy(bill *model.ExtractedBill, offers []model.Offer, now time.Time) ([]Comparison, error) {
	if !bill.HasCommodity() {
		return nil, eris.Wrap(ErrNotComparable, "compare: missing commodity")
	}
	u := usageOf(bill)
	if !u.total.IsPositive() {
		return nil, eris.Wrap(ErrNotComparable, "compare: missing consumption")
	}

	current := CurrentAnnualCost(bill)
	var out []Comparison
	for _, o := range offers {
		if o.Commodity != bill.Commodity || o.Expired(now) {
			continue
		}
		bands := u.hasBands() && o.HasBandPrices()
		annual := offerAnnualCost(o, u, bands)
		savings := current.Sub(annual)
		out = append(out, Comparison{
			Offer:         o,
			CurrentAnnual: current,
			OfferAnnual:   annual,
			Savings:       savings,
			SavingsPct:    percent(savings, current),
			TimeBands:     bands,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Savings.GreaterThan(out[j].Savings)
	})
	return out, nil
}

func offerAnnualCost(o model.Offer, u usage, bands bool) decimal.Decimal {
	var energy decimal.Decimal
	if bands {
		energy = u.f1.Mul(decimal.NewFromFloat(o.F1Price)).
			Add(u.f2.Mul(decimal.NewFromFloat(o.F2Price))).
			Add(u.f3.Mul(decimal.NewFromFloat(o.F3Price)))
	} else {
		energy = u.total.Mul(decimal.NewFromFloat(o.UnitPrice))
	}
	return energy.Add(months.Mul(decimal.NewFromFloat(o.FixedFee))).Round(2)
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// ConnectivityComparison is one canvas offer priced against the current line.
type ConnectivityComparison struct {
	Offer         model.CanvasOffer `json:"offer"`
	CurrentAnnual decimal.Decimal   `json:"current_annual"`
	OfferAnnual   decimal.Decimal   `json:"offer_annual"`
	Savings       decimal.Decimal   `json:"savings"`
}

// CompareConnectivity prices canvas offers against a property's current
// connectivity contract, best savings first. A nil current contract is
// priced at zero, so every offer shows as a cost.
func CompareConnectivity(current *model.ConnectivityDetails, canvas []model.CanvasOffer) []ConnectivityComparison {
	currentAnnual := decimal.Zero
	if current != nil {
		currentAnnual = months.Mul(decimal.NewFromFloat(current.MonthlyFee)).Round(2)
	}

	out := make([]ConnectivityComparison, 0, len(canvas))
	for _, o := range canvas {
		annual := months.Mul(decimal.NewFromFloat(o.MonthlyFee)).Round(2)
		out = append(out, ConnectivityComparison{
			Offer:         o,
			CurrentAnnual: currentAnnual,
			OfferAnnual:   annual,
			Savings:       currentAnnual.Sub(annual),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Savings.GreaterThan(out[j].Savings)
	})
	return out
}
