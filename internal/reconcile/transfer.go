package reconcile

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/fiscal"
	"github.com/sells-group/agency-crm/internal/model"
)

// TransferRequest is an operator-confirmed voltura: the supply on the
// owner's property moves to the customer named on Bill.
type TransferRequest struct {
	Bill       *model.ExtractedBill
	OwnerID    string
	PropertyID string
}

// TransferResult holds both customers as persisted.
type TransferResult struct {
	PreviousOwner *model.Customer `json:"previous_owner"`
	NewOwner      *model.Customer `json:"new_owner"`
	PropertyID    string          `json:"property_id"`
	OwnerCreated  bool            `json:"owner_created"`
}

// Transfer marks the owner's property SOLD and gives the new owner a fresh
// ACTIVE property with the bill's supply data. Writes are sequential (old
// owner first) with no rollback: an error after the first write leaves the
// transfer partially applied and is returned as such.
func (e *Engine) Transfer(ctx context.Context, tc model.TenantContext, req TransferRequest) (*TransferResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if req.Bill == nil || fiscal.Normalize(req.Bill.FiscalCode) == "" {
		return nil, ErrMissingFiscalCode
	}
	bill := cleanBill(req.Bill)
	code := bill.SupplyCode
	if code == "" {
		return nil, eris.Wrap(ErrInvalidDecision, "transfer: bill has no supply code")
	}

	owner, err := e.loadCustomer(ctx, tc, req.OwnerID)
	if err != nil {
		return nil, err
	}
	prop := owner.PropertyByID(req.PropertyID)
	if prop == nil {
		return nil, eris.Wrapf(ErrInvalidDecision, "transfer: property %s not on customer %s", req.PropertyID, owner.ID)
	}
	if !prop.HasSupplyCode(code) {
		return nil, eris.Wrapf(ErrInvalidDecision, "transfer: property %s does not carry %s", prop.ID, code)
	}
	newCode := fiscal.Normalize(bill.FiscalCode)
	if fiscal.Normalize(owner.FiscalCode) == newCode {
		return nil, ErrSameCustomer
	}

	prop.Status = model.PropertySold

	cls := fiscal.Classify(bill.FiscalCode, bill.ClientName, bill.TypeHint)
	newOwner, created, err := e.resolver.ResolveOrCreate(ctx, tc, bill.FiscalCode, cls.Type, NameFieldsFromBill(bill.ClientName, cls.Type))
	if err != nil {
		return nil, eris.Wrap(err, "transfer: resolve new owner")
	}

	resident := bill.IsResident == nil || *bill.IsResident
	newProp := NewPropertyFromBill(bill, resident)
	if IsPlaceholderAddress(bill.Address) {
		// The supply point does not move with a voltura.
		newProp.Address, newProp.City, newProp.Zip = prop.Address, prop.City, prop.Zip
	}
	newOwner.Properties = append(newOwner.Properties, newProp)

	if err := e.store.UpdateCustomer(ctx, owner); err != nil {
		return nil, eris.Wrapf(err, "transfer: mark property sold on customer %s", owner.ID)
	}
	if err := e.store.UpdateCustomer(ctx, newOwner); err != nil {
		zap.L().Error("transfer: partially applied, previous owner already updated",
			zap.String("agency_id", tc.AgencyID),
			zap.String("previous_owner_id", owner.ID),
			zap.String("new_owner_id", newOwner.ID),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "transfer: save new owner %s", newOwner.ID)
	}
	e.saved(ctx, newOwner)

	if err := e.audit(ctx, tc, model.AuditPropertyTransfer, fmt.Sprintf("%s -> %s", code, newCode)); err != nil {
		return nil, err
	}

	zap.L().Info("transfer: supply moved",
		zap.String("agency_id", tc.AgencyID),
		zap.String("supply_code", code),
		zap.String("previous_owner_id", owner.ID),
		zap.String("new_owner_id", newOwner.ID),
	)

	return &TransferResult{
		PreviousOwner: owner,
		NewOwner:      newOwner,
		PropertyID:    newProp.ID,
		OwnerCreated:  created,
	}, nil
}
