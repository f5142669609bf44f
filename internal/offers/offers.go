// Package offers imports agency price lists: energy offers (CTE, by
// supplier and commodity) and connectivity canvas offers, from CSV, XLSX or
// YAML files.
package offers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// ErrUnsupportedFormat is returned for files that are not CSV, XLSX or YAML.
var ErrUnsupportedFormat = eris.New("offers: unsupported file format")

// offerNamespace seeds deterministic offer IDs so re-importing a price list
// updates offers in place.
var offerNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9e55-2c4b1f0d9a10")

// PriceList is the YAML document shape, and the parsed form of any file.
type PriceList struct {
	Offers []model.Offer       `yaml:"offers"`
	Canvas []model.CanvasOffer `yaml:"canvas"`
}

// Summary counts what an import wrote.
type Summary struct {
	Offers int `json:"offers"`
	Canvas int `json:"canvas"`
}

// Importer writes parsed price lists into the offer store.
type Importer struct {
	store store.OfferStore
}

// NewImporter creates an Importer.
func NewImporter(st store.OfferStore) *Importer {
	return &Importer{store: st}
}

// ImportFile parses path by extension and upserts every offer for the agency.
// Nothing is written if any row fails to parse.
func (im *Importer) ImportFile(ctx context.Context, agencyID, path string) (Summary, error) {
	list, err := ParseFile(path)
	if err != nil {
		return Summary{}, err
	}
	return im.Import(ctx, agencyID, list)
}

// Import upserts a parsed price list for the agency.
func (im *Importer) Import(ctx context.Context, agencyID string, list *PriceList) (Summary, error) {
	if agencyID == "" {
		return Summary{}, eris.New("offers: agency id is required")
	}

	var sum Summary
	for i := range list.Offers {
		o := &list.Offers[i]
		o.AgencyID = agencyID
		if o.ID == "" {
			o.ID = offerID(agencyID, "cte", o.Supplier, o.Name, string(o.Commodity))
		}
		if err := im.store.UpsertOffer(ctx, o); err != nil {
			return sum, eris.Wrapf(err, "offers: upsert offer %s", o.Name)
		}
		sum.Offers++
	}
	for i := range list.Canvas {
		o := &list.Canvas[i]
		o.AgencyID = agencyID
		if o.ID == "" {
			o.ID = offerID(agencyID, "canvas", o.Provider, o.Name)
		}
		if err := im.store.UpsertCanvasOffer(ctx, o); err != nil {
			return sum, eris.Wrapf(err, "offers: upsert canvas offer %s", o.Name)
		}
		sum.Canvas++
	}

	zap.L().Info("offers: price list imported",
		zap.String("agency_id", agencyID),
		zap.Int("offers", sum.Offers),
		zap.Int("canvas", sum.Canvas),
	)
	return sum, nil
}

func offerID(parts ...string) string {
	key := strings.ToLower(strings.Join(parts, "|"))
	return uuid.NewSHA1(offerNamespace, []byte(key)).String()
}

// ParseFile reads a price list, choosing the parser by file extension.
func ParseFile(path string) (*PriceList, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		rows, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		return ParseRows(rows)
	case ".xlsx":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return ParseRows(rows)
	case ".yaml", ".yml":
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return ParseYAML(data)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "offers: %s", filepath.Base(path))
	}
}

// ParseYAML decodes a YAML price list and checks each entry.
func ParseYAML(data []byte) (*PriceList, error) {
	var list PriceList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, eris.Wrap(err, "offers: decode yaml")
	}
	for i := range list.Offers {
		o := &list.Offers[i]
		o.Commodity = model.ParseCommodity(string(o.Commodity))
		if o.Supplier == "" || o.Name == "" || o.Commodity == "" {
			return nil, eris.Errorf("offers: offer %d: supplier, name and commodity are required", i+1)
		}
	}
	for i, o := range list.Canvas {
		if o.Provider == "" || o.Name == "" {
			return nil, eris.Errorf("offers: canvas offer %d: provider and name are required", i+1)
		}
	}
	return &list, nil
}

// ParseRows maps tabular rows to offers. The first non-blank row is the
// header; a header with provider and monthly fee columns is a canvas list.
func ParseRows(rows [][]string) (*PriceList, error) {
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, eris.New("offers: price list is empty")
	}

	h := parseHeader(rows[start])
	list := &PriceList{}
	for i, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		line := start + i + 2
		if h.canvas() {
			o, err := canvasOffer(h, row)
			if err != nil {
				return nil, eris.Wrap(err, fmt.Sprintf("offers: row %d", line))
			}
			list.Canvas = append(list.Canvas, o)
			continue
		}
		o, err := energyOffer(h, row)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("offers: row %d", line))
		}
		list.Offers = append(list.Offers, o)
	}
	return list, nil
}
