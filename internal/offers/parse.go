package offers

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/agency-crm/internal/model"
)

// column identifies a price-list field independent of the header language.
type column int

const (
	colSupplier column = iota
	colName
	colCommodity
	colUnitPrice
	colF1
	colF2
	colF3
	colFixedFee
	colValidUntil
	colProvider
	colTechnology
	colMonthlyFee
)

var headerAliases = map[string]column{
	"supplier":    colSupplier,
	"fornitore":   colSupplier,
	"name":        colName,
	"nome":        colName,
	"offerta":     colName,
	"commodity":   colCommodity,
	"commodita":   colCommodity,
	"tipo":        colCommodity,
	"unit_price":  colUnitPrice,
	"prezzo":      colUnitPrice,
	"f1":          colF1,
	"f1_price":    colF1,
	"f2":          colF2,
	"f2_price":    colF2,
	"f3":          colF3,
	"f3_price":    colF3,
	"fixed_fee":   colFixedFee,
	"quota_fissa": colFixedFee,
	"valid_until": colValidUntil,
	"scadenza":    colValidUntil,
	"provider":    colProvider,
	"operatore":   colProvider,
	"technology":  colTechnology,
	"tecnologia":  colTechnology,
	"monthly_fee": colMonthlyFee,
	"canone":      colMonthlyFee,
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "01-02-06"}

// header maps known columns to their index in a row.
type header map[column]int

func parseHeader(row []string) header {
	h := header{}
	for i, cell := range row {
		key := strings.ToLower(strings.Join(strings.Fields(cell), "_"))
		if col, ok := headerAliases[key]; ok {
			if _, dup := h[col]; !dup {
				h[col] = i
			}
		}
	}
	return h
}

// canvas reports whether the header describes a connectivity price list.
func (h header) canvas() bool {
	_, fee := h[colMonthlyFee]
	_, prov := h[colProvider]
	return fee && prov
}

func (h header) get(row []string, col column) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (h header) number(row []string, col column) (float64, error) {
	return parseNumber(h.get(row, col))
}

// parseNumber accepts "0,1234", "1.234,56", "€ 12" and plain decimals.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "€"))
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, eris.Wrapf(err, "offers: parse number %q", s)
	}
	return d.InexactFloat64(), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("offers: parse date %q", s)
}

func energyOffer(h header, row []string) (model.Offer, error) {
	o := model.Offer{
		Supplier:  h.get(row, colSupplier),
		Name:      h.get(row, colName),
		Commodity: model.ParseCommodity(h.get(row, colCommodity)),
	}
	if o.Supplier == "" || o.Name == "" {
		return o, eris.New("offers: supplier and name are required")
	}
	if o.Commodity == "" {
		return o, eris.Errorf("offers: unknown commodity %q", h.get(row, colCommodity))
	}

	var err error
	for col, dst := range map[column]*float64{
		colUnitPrice: &o.UnitPrice,
		colF1:        &o.F1Price,
		colF2:        &o.F2Price,
		colF3:        &o.F3Price,
		colFixedFee:  &o.FixedFee,
	} {
		if *dst, err = h.number(row, col); err != nil {
			return o, err
		}
	}
	if o.ValidUntil, err = parseDate(h.get(row, colValidUntil)); err != nil {
		return o, err
	}
	return o, nil
}

func canvasOffer(h header, row []string) (model.CanvasOffer, error) {
	o := model.CanvasOffer{
		Provider:   h.get(row, colProvider),
		Name:       h.get(row, colName),
		Technology: h.get(row, colTechnology),
	}
	if o.Provider == "" || o.Name == "" {
		return o, eris.New("offers: provider and name are required")
	}
	fee, err := h.number(row, colMonthlyFee)
	if err != nil {
		return o, err
	}
	o.MonthlyFee = fee
	return o, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
