// Package model defines the domain records shared by the reconciliation
// engine, the stores and the API.
package model

import (
	"strings"
	"time"
)

// CustomerType classifies a customer by its fiscal identity.
type CustomerType string

const (
	CustomerPerson  CustomerType = "PERSON"
	CustomerCompany CustomerType = "COMPANY"
)

// Valid reports whether t is a known customer type.
func (t CustomerType) Valid() bool {
	return t == CustomerPerson || t == CustomerCompany
}

// PropertyStatus is the lifecycle state of a property.
type PropertyStatus string

const (
	PropertyActive   PropertyStatus = "ACTIVE"
	PropertySold     PropertyStatus = "SOLD"
	PropertyInactive PropertyStatus = "INACTIVE"
)

// Customer is a tenant-scoped customer record. FiscalCode is the identity
// key: at most one customer per normalized fiscal code within an agency.
type Customer struct {
	ID          string       `json:"id"`
	AgencyID    string       `json:"agency_id"`
	FiscalCode  string       `json:"fiscal_code"`
	Type        CustomerType `json:"type"`
	FirstName   string       `json:"first_name,omitempty"`
	LastName    string       `json:"last_name,omitempty"`
	CompanyName string       `json:"company_name,omitempty"`

	// Contact
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	BirthPlace string `json:"birth_place,omitempty"`

	// FamilyID groups PERSON customers into a household. By convention it is
	// the household head's customer ID.
	FamilyID string `json:"family_id,omitempty"`

	Properties  []Property   `json:"properties"`
	MobileLines []MobileLine `json:"mobile_lines,omitempty"`
	Vehicles    []Vehicle    `json:"vehicles,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the company name or the person's full name.
func (c *Customer) DisplayName() string {
	if c.Type == CustomerCompany && c.CompanyName != "" {
		return c.CompanyName
	}
	full := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if full == "" {
		return c.CompanyName
	}
	return full
}

// PropertyByID returns a pointer into c.Properties, or nil.
func (c *Customer) PropertyByID(id string) *Property {
	for i := range c.Properties {
		if c.Properties[i].ID == id {
			return &c.Properties[i]
		}
	}
	return nil
}

// Property is a supply location owned by exactly one customer.
type Property struct {
	ID           string               `json:"id"`
	Address      string               `json:"address"`
	City         string               `json:"city,omitempty"`
	Zip          string               `json:"zip,omitempty"`
	Status       PropertyStatus       `json:"status"`
	Electricity  *CommodityDetails    `json:"electricity,omitempty"`
	Gas          *CommodityDetails    `json:"gas,omitempty"`
	Connectivity *ConnectivityDetails `json:"connectivity,omitempty"`
	IsResident   bool                 `json:"is_resident"`
}

// Commodity returns the sub-record for the given commodity.
func (p *Property) Commodity(c Commodity) *CommodityDetails {
	switch c {
	case CommodityElectricity:
		return p.Electricity
	case CommodityGas:
		return p.Gas
	default:
		return nil
	}
}

// SetCommodity replaces the sub-record for the given commodity.
func (p *Property) SetCommodity(c Commodity, d *CommodityDetails) {
	switch c {
	case CommodityElectricity:
		p.Electricity = d
	case CommodityGas:
		p.Gas = d
	}
}

// HasSupplyCode reports whether either commodity carries code. Both sides
// are compared in NormalizeSupplyCode form.
func (p *Property) HasSupplyCode(code string) bool {
	code = NormalizeSupplyCode(code)
	if code == "" {
		return false
	}
	return (p.Electricity != nil && NormalizeSupplyCode(p.Electricity.Code) == code) ||
		(p.Gas != nil && NormalizeSupplyCode(p.Gas.Code) == code)
}

// CommodityDetails is the technical and pricing data of one energy supply.
// Code is the POD (electricity) or PDR (gas).
type CommodityDetails struct {
	Supplier          string             `json:"supplier,omitempty"`
	Code              string             `json:"code,omitempty"`
	AnnualConsumption float64            `json:"annual_consumption,omitempty"`
	F1                float64            `json:"f1,omitempty"`
	F2                float64            `json:"f2,omitempty"`
	F3                float64            `json:"f3,omitempty"`
	UnitPrice         float64            `json:"unit_price,omitempty"`
	FixedFee          float64            `json:"fixed_fee,omitempty"`
	History           []ConsumptionPoint `json:"history,omitempty"`
}

// Empty reports whether d is nil or identifies neither a supply code nor
// a supplier.
func (d *CommodityDetails) Empty() bool {
	return d == nil || (d.Code == "" && d.Supplier == "")
}

// ConsumptionPoint is one historical consumption reading.
type ConsumptionPoint struct {
	Period      string  `json:"period"`
	Consumption float64 `json:"consumption"`
}

// ConnectivityDetails describes a fixed-line/broadband contract.
type ConnectivityDetails struct {
	Provider   string  `json:"provider,omitempty"`
	Technology string  `json:"technology,omitempty"`
	MonthlyFee float64 `json:"monthly_fee,omitempty"`
}

// Empty reports whether c is nil or names no provider.
func (c *ConnectivityDetails) Empty() bool {
	return c == nil || c.Provider == ""
}

// MobileLine is a mobile telephony contract.
type MobileLine struct {
	Number     string  `json:"number"`
	Operator   string  `json:"operator,omitempty"`
	MonthlyFee float64 `json:"monthly_fee,omitempty"`
}

// Vehicle is an insured vehicle owned by the customer.
type Vehicle struct {
	Plate           string `json:"plate"`
	Model           string `json:"model,omitempty"`
	InsuranceExpiry string `json:"insurance_expiry,omitempty"`
}
