package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/fiscal"
	"github.com/sells-group/agency-crm/internal/model"
)

// ResultKind tells the caller whether the bill was saved or needs an
// operator decision.
type ResultKind string

const (
	ResultSuccess   ResultKind = "SUCCESS"
	ResultAmbiguous ResultKind = "AMBIGUOUS_PROPERTY"
	ResultConflict  ResultKind = "CONFLICT_EXISTING_OWNER"
)

// ChoiceNew asks SaveAnalyzedBill to create a new property.
const ChoiceNew = "NEW"

// Result is the outcome of reconciling one extracted document.
type Result struct {
	Kind      ResultKind           `json:"kind"`
	Extracted *model.ExtractedBill `json:"extracted"`

	// SUCCESS
	Customer        *model.Customer `json:"customer,omitempty"`
	PropertyID      string          `json:"property_id,omitempty"`
	CustomerCreated bool            `json:"customer_created,omitempty"`
	PropertyCreated bool            `json:"property_created,omitempty"`

	// AMBIGUOUS_PROPERTY
	ExistingCustomerID string           `json:"existing_customer_id,omitempty"`
	ExistingProperties []model.Property `json:"existing_properties,omitempty"`

	// CONFLICT_EXISTING_OWNER
	ConflictOwner    *model.Customer `json:"conflict_owner,omitempty"`
	ConflictProperty *model.Property `json:"conflict_property,omitempty"`
}

// AnalyzeBill reconciles an extracted document against the tenant's
// records. Conflicts and ambiguous property matches are returned as result
// variants and leave the store untouched; otherwise the customer and
// property are created or updated and a SUCCESS result is returned.
func (e *Engine) AnalyzeBill(ctx context.Context, tc model.TenantContext, bill *model.ExtractedBill) (*Result, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if bill == nil || fiscal.Normalize(bill.FiscalCode) == "" {
		return nil, ErrMissingFiscalCode
	}
	bill = cleanBill(bill)

	existing, err := e.resolver.Find(ctx, tc, bill.FiscalCode)
	if err != nil {
		return nil, err
	}
	excluding := ""
	if existing != nil {
		excluding = existing.ID
	}

	conflict, err := e.detector.Detect(ctx, tc, bill, excluding)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return &Result{
			Kind:             ResultConflict,
			Extracted:        bill,
			ConflictOwner:    conflict.Owner,
			ConflictProperty: conflict.Property,
		}, nil
	}

	if existing != nil {
		if m := MatchProperty(existing, bill); m.Ambiguous() {
			zap.L().Info("reconcile: ambiguous property match",
				zap.String("agency_id", tc.AgencyID),
				zap.String("customer_id", existing.ID),
				zap.Int("candidates", len(m.Candidates)),
			)
			props := make([]model.Property, 0, len(m.Candidates))
			for _, p := range m.Candidates {
				props = append(props, *p)
			}
			return &Result{
				Kind:               ResultAmbiguous,
				Extracted:          bill,
				ExistingCustomerID: existing.ID,
				ExistingProperties: props,
			}, nil
		}
	}

	return e.save(ctx, tc, bill, "")
}

// SaveAnalyzedBill persists a bill after an operator picked the property
// from an AMBIGUOUS_PROPERTY result. choice is a property id or ChoiceNew.
func (e *Engine) SaveAnalyzedBill(ctx context.Context, tc model.TenantContext, bill *model.ExtractedBill, choice string) (*Result, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if bill == nil || fiscal.Normalize(bill.FiscalCode) == "" {
		return nil, ErrMissingFiscalCode
	}
	if choice == "" {
		return nil, eris.Wrap(ErrInvalidDecision, "reconcile: property choice is required")
	}
	return e.save(ctx, tc, cleanBill(bill), choice)
}

// cleanBill returns a copy of bill with its supply code in stored form, so
// matching, conflict checks and the saved property all see one value. The
// caller's bill is left as is.
func cleanBill(bill *model.ExtractedBill) *model.ExtractedBill {
	cp := *bill
	cp.SupplyCode = model.NormalizeSupplyCode(bill.SupplyCode)
	return &cp
}

// save resolves the customer and applies the bill to the chosen property.
// An empty choice lets the matcher decide.
func (e *Engine) save(ctx context.Context, tc model.TenantContext, bill *model.ExtractedBill, choice string) (*Result, error) {
	cls := fiscal.Classify(bill.FiscalCode, bill.ClientName, bill.TypeHint)
	names := NameFieldsFromBill(bill.ClientName, cls.Type)

	var (
		c       *model.Customer
		created bool
		err     error
	)
	// A specific property id must already exist, so the customer must too.
	if choice != "" && choice != ChoiceNew {
		c, err = e.resolver.Find(ctx, tc, bill.FiscalCode)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, eris.Wrapf(ErrInvalidDecision, "reconcile: no customer for property %s", choice)
		}
		if reconcileDrift(c, cls.Type, names) {
			zap.L().Debug("reconcile: drift applied with property choice", zap.String("customer_id", c.ID))
		}
	} else {
		c, created, err = e.resolver.ResolveOrCreate(ctx, tc, bill.FiscalCode, cls.Type, names)
		if err != nil {
			return nil, err
		}
	}

	var (
		prop        *model.Property
		propCreated bool
	)
	switch choice {
	case "":
		prop, propCreated = MatchOrCreate(c, bill)
	case ChoiceNew:
		c.Properties = append(c.Properties, NewPropertyFromBill(bill, residentFlag(bill)))
		prop, propCreated = &c.Properties[len(c.Properties)-1], true
	default:
		prop = c.PropertyByID(choice)
		if prop == nil {
			return nil, eris.Wrapf(ErrInvalidDecision, "reconcile: property %s not on customer %s", choice, c.ID)
		}
		ApplyBill(prop, bill)
	}
	propertyID := prop.ID

	if err := e.store.UpdateCustomer(ctx, c); err != nil {
		return nil, eris.Wrapf(err, "reconcile: save customer %s", c.ID)
	}
	e.saved(ctx, c)

	zap.L().Info("reconcile: bill saved",
		zap.String("agency_id", tc.AgencyID),
		zap.String("customer_id", c.ID),
		zap.String("property_id", propertyID),
		zap.Bool("customer_created", created),
		zap.Bool("property_created", propCreated),
	)

	return &Result{
		Kind:            ResultSuccess,
		Extracted:       bill,
		Customer:        c,
		PropertyID:      propertyID,
		CustomerCreated: created,
		PropertyCreated: propCreated,
	}, nil
}
