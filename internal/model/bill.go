package model

import "strings"

// Commodity is the energy type a bill refers to.
type Commodity string

const (
	CommodityElectricity Commodity = "electricity"
	CommodityGas         Commodity = "gas"
)

var commodityAliases = map[string]Commodity{
	"electricity": CommodityElectricity,
	"luce":        CommodityElectricity,
	"energia":     CommodityElectricity,
	"power":       CommodityElectricity,
	"gas":         CommodityGas,
	"metano":      CommodityGas,
}

// ParseCommodity maps English and Italian commodity names to a Commodity.
// Unknown values yield "".
func ParseCommodity(s string) Commodity {
	return commodityAliases[strings.ToLower(strings.TrimSpace(s))]
}

// DocumentType is the kind of document the extraction ran on.
type DocumentType string

const (
	DocumentBill   DocumentType = "BILL"
	DocumentIDCard DocumentType = "ID_CARD"
)

// ExtractedBill is the structured output of the extraction service. It is
// never persisted as-is; it is the input to reconciliation.
type ExtractedBill struct {
	FiscalCode   string       `json:"fiscal_code"`
	ClientName   string       `json:"client_name"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	Zip          string       `json:"zip,omitempty"`
	IsResident   *bool        `json:"is_resident,omitempty"`
	Commodity    Commodity    `json:"commodity"`
	SupplyCode   string       `json:"supply_code"`
	SupplierName string       `json:"supplier_name"`
	DocumentType DocumentType `json:"document_type"`

	// Consumption: total plus the F1/F2/F3 time-band split.
	TotalConsumption float64 `json:"total_consumption"`
	F1               float64 `json:"f1"`
	F2               float64 `json:"f2"`
	F3               float64 `json:"f3"`

	DetectedUnitPrice float64 `json:"detected_unit_price"`
	DetectedFixedFee  float64 `json:"detected_fixed_fee"`

	// TypeHint is the extraction model's own PERSON/COMPANY guess. It is only
	// consulted when the fiscal code format is inconclusive.
	TypeHint CustomerType `json:"type_hint,omitempty"`
}

// NormalizeSupplyCode puts a POD or PDR in its stored form: upper case with
// all whitespace removed.
func NormalizeSupplyCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// HasCommodity reports whether the bill carries energy supply data.
func (b *ExtractedBill) HasCommodity() bool {
	return b.Commodity == CommodityElectricity || b.Commodity == CommodityGas
}

// CommodityDetails builds the property sub-record described by the bill.
func (b *ExtractedBill) CommodityDetails() *CommodityDetails {
	return &CommodityDetails{
		Supplier:          b.SupplierName,
		Code:              NormalizeSupplyCode(b.SupplyCode),
		AnnualConsumption: b.TotalConsumption,
		F1:                b.F1,
		F2:                b.F2,
		F3:                b.F3,
		UnitPrice:         b.DetectedUnitPrice,
		FixedFee:          b.DetectedFixedFee,
	}
}
