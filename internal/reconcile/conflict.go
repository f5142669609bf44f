package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// Conflict is a supply code already held by another customer's property.
type Conflict struct {
	Owner    *model.Customer
	Property *model.Property
}

// Detector scans a tenant for supply-code collisions.
type Detector struct {
	store store.CustomerStore
}

// NewDetector creates a conflict detector.
func NewDetector(st store.CustomerStore) *Detector {
	return &Detector{store: st}
}

// Detect returns the first property, on any customer other than
// excludingCustomerID, whose electricity or gas code equals the bill's
// supply code. Identity documents and bills without a code never conflict.
//
// Property status is not considered: a SOLD or INACTIVE property still
// reports a conflict. Only one conflict is returned even if several exist.
func (d *Detector) Detect(ctx context.Context, tc model.TenantContext, bill *model.ExtractedBill, excludingCustomerID string) (*Conflict, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	code := model.NormalizeSupplyCode(bill.SupplyCode)
	if !isBillDocument(bill) || code == "" {
		return nil, nil
	}

	customers, err := d.store.ListCustomers(ctx, tc.AgencyID)
	if err != nil {
		return nil, eris.Wrap(err, "conflict: list customers")
	}
	for i := range customers {
		owner := &customers[i]
		if owner.ID == excludingCustomerID {
			continue
		}
		for j := range owner.Properties {
			if owner.Properties[j].HasSupplyCode(code) {
				zap.L().Info("conflict: supply code held by another customer",
					zap.String("agency_id", tc.AgencyID),
					zap.String("supply_code", code),
					zap.String("owner_id", owner.ID),
					zap.String("property_id", owner.Properties[j].ID),
				)
				return &Conflict{Owner: owner, Property: &owner.Properties[j]}, nil
			}
		}
	}
	return nil, nil
}

// isBillDocument treats an unset document type as a bill, which is what the
// extraction service emits by default.
func isBillDocument(bill *model.ExtractedBill) bool {
	return bill.DocumentType == model.DocumentBill || bill.DocumentType == ""
}
