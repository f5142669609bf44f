package reconcile

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/sells-group/agency-crm/internal/model"
)

// MatchResult is the outcome of matching a bill against a customer's
// properties. Property is set for a single match; Candidates holds every
// address match when there is more than one.
type MatchResult struct {
	Property   *model.Property
	ByCode     bool
	Candidates []*model.Property
}

// Ambiguous reports whether several properties matched by address only.
func (m MatchResult) Ambiguous() bool {
	return m.Property == nil && len(m.Candidates) > 1
}

// MatchProperty looks for the bill's property on c without mutating it.
// A supply-code match wins outright; otherwise addresses are compared by
// AddressKey with substring tolerance in either direction.
func MatchProperty(c *model.Customer, bill *model.ExtractedBill) MatchResult {
	if code := model.NormalizeSupplyCode(bill.SupplyCode); code != "" {
		for i := range c.Properties {
			if c.Properties[i].HasSupplyCode(code) {
				return MatchResult{Property: &c.Properties[i], ByCode: true}
			}
		}
	}

	if IsPlaceholderAddress(bill.Address) {
		return MatchResult{}
	}
	billKey := AddressKey(bill.Address)

	var candidates []*model.Property
	for i := range c.Properties {
		p := &c.Properties[i]
		if IsPlaceholderAddress(p.Address) {
			continue
		}
		if addressesOverlap(AddressKey(p.Address), billKey) {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 0:
		return MatchResult{}
	case 1:
		return MatchResult{Property: candidates[0]}
	default:
		return MatchResult{Candidates: rankCandidates(candidates, billKey)}
	}
}

// rankCandidates orders address candidates by edit distance to the bill's
// address key. It only affects presentation order.
func rankCandidates(candidates []*model.Property, billKey string) []*model.Property {
	ranked := append([]*model.Property(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return levenshtein.ComputeDistance(AddressKey(ranked[i].Address), billKey) <
			levenshtein.ComputeDistance(AddressKey(ranked[j].Address), billKey)
	})
	return ranked
}

// MatchOrCreate finds the bill's property on c, updating it from the bill,
// or appends a new one. With several address candidates the first in
// property order is used. c is mutated in memory only.
func MatchOrCreate(c *model.Customer, bill *model.ExtractedBill) (*model.Property, bool) {
	m := MatchProperty(c, bill)
	p := m.Property
	if p == nil && len(m.Candidates) > 0 {
		p = firstInOrder(c, m.Candidates)
	}
	if p != nil {
		ApplyBill(p, bill)
		return p, false
	}

	c.Properties = append(c.Properties, NewPropertyFromBill(bill, residentFlag(bill)))
	return &c.Properties[len(c.Properties)-1], true
}

func firstInOrder(c *model.Customer, candidates []*model.Property) *model.Property {
	for i := range c.Properties {
		for _, cand := range candidates {
			if cand == &c.Properties[i] {
				return cand
			}
		}
	}
	return candidates[0]
}

// residentFlag is the bill's detected residency, forced true for identity
// documents.
func residentFlag(bill *model.ExtractedBill) bool {
	if bill.DocumentType == model.DocumentIDCard {
		return true
	}
	return bill.IsResident != nil && *bill.IsResident
}

// NewPropertyFromBill builds an ACTIVE property carrying the bill's address
// and commodity data.
func NewPropertyFromBill(bill *model.ExtractedBill, resident bool) model.Property {
	p := model.Property{
		ID:         uuid.New().String(),
		Address:    bill.Address,
		City:       bill.City,
		Zip:        bill.Zip,
		Status:     model.PropertyActive,
		IsResident: resident,
	}
	if IsPlaceholderAddress(p.Address) {
		p.Address = PlaceholderAddress
	}
	if bill.HasCommodity() {
		p.SetCommodity(bill.Commodity, bill.CommodityDetails())
	}
	return p
}

// ApplyBill overwrites the property's commodity sub-record with the bill's
// data, carrying the previous consumption history forward, and backfills a
// placeholder address.
func ApplyBill(p *model.Property, bill *model.ExtractedBill) {
	if bill.HasCommodity() {
		next := bill.CommodityDetails()
		if prev := p.Commodity(bill.Commodity); prev != nil {
			next.History = prev.History
		}
		p.SetCommodity(bill.Commodity, next)
	}

	if IsPlaceholderAddress(p.Address) && !IsPlaceholderAddress(bill.Address) {
		p.Address = bill.Address
		if p.City == "" {
			p.City = bill.City
		}
		if p.Zip == "" {
			p.Zip = bill.Zip
		}
	}
}
