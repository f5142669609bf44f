package reconcile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/fiscal"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// NameFields carries the name parts extracted from a document.
type NameFields struct {
	FirstName   string
	LastName    string
	CompanyName string
}

// NameFieldsFromBill splits an extracted client name. Companies keep the
// whole string; for people the first token is the first name and the rest
// the last name (a single token is treated as a last name).
func NameFieldsFromBill(clientName string, t model.CustomerType) NameFields {
	name := strings.Join(strings.Fields(clientName), " ")
	if name == "" || IsPlaceholderAddress(name) {
		return NameFields{}
	}
	if t == model.CustomerCompany {
		return NameFields{CompanyName: name}
	}
	first, rest, found := strings.Cut(name, " ")
	if !found {
		return NameFields{LastName: first}
	}
	return NameFields{FirstName: first, LastName: rest}
}

// Resolver finds or creates customers by fiscal code within one agency.
type Resolver struct {
	store store.CustomerStore
}

// NewResolver creates a customer resolver.
func NewResolver(st store.CustomerStore) *Resolver {
	return &Resolver{store: st}
}

// Find returns the agency's customer whose normalized fiscal code equals
// the normalized fiscalCode, or nil when none exists.
func (r *Resolver) Find(ctx context.Context, tc model.TenantContext, fiscalCode string) (*model.Customer, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	code := fiscal.Normalize(fiscalCode)
	if code == "" {
		return nil, ErrMissingFiscalCode
	}

	customers, err := r.store.ListCustomers(ctx, tc.AgencyID)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list customers")
	}
	for i := range customers {
		if fiscal.Normalize(customers[i].FiscalCode) == code {
			return &customers[i], nil
		}
	}
	return nil, nil
}

// ResolveOrCreate returns the customer for fiscalCode, creating it when
// missing. An existing customer has its type realigned to classified and its
// empty or placeholder name fields backfilled; it is persisted only when
// something changed. Repeated calls never create a second customer for the
// same normalized code.
func (r *Resolver) ResolveOrCreate(ctx context.Context, tc model.TenantContext, fiscalCode string, classified model.CustomerType, names NameFields) (*model.Customer, bool, error) {
	existing, err := r.Find(ctx, tc, fiscalCode)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		if reconcileDrift(existing, classified, names) {
			if err := r.store.UpdateCustomer(ctx, existing); err != nil {
				return nil, false, eris.Wrapf(err, "resolve: update customer %s", existing.ID)
			}
			zap.L().Info("resolve: reconciled customer drift",
				zap.String("agency_id", tc.AgencyID),
				zap.String("customer_id", existing.ID),
				zap.String("type", string(existing.Type)),
			)
		} else {
			zap.L().Debug("resolve: matched by fiscal code",
				zap.String("agency_id", tc.AgencyID),
				zap.String("customer_id", existing.ID),
			)
		}
		return existing, false, nil
	}

	if !classified.Valid() {
		classified = model.CustomerPerson
	}
	c := &model.Customer{
		AgencyID:    tc.AgencyID,
		FiscalCode:  fiscal.Normalize(fiscalCode),
		Type:        classified,
		FirstName:   names.FirstName,
		LastName:    names.LastName,
		CompanyName: names.CompanyName,
		Properties:  []model.Property{},
	}
	if err := r.store.CreateCustomer(ctx, c); err != nil {
		return nil, false, eris.Wrap(err, "resolve: create customer")
	}

	zap.L().Info("resolve: created new customer",
		zap.String("agency_id", tc.AgencyID),
		zap.String("customer_id", c.ID),
		zap.String("type", string(c.Type)),
	)
	return c, true, nil
}

// reconcileDrift applies the freshly classified type and backfills name
// fields. It reports whether c changed.
func reconcileDrift(c *model.Customer, classified model.CustomerType, names NameFields) bool {
	changed := false
	if classified.Valid() && c.Type != classified {
		c.Type = classified
		changed = true
	}
	backfill := func(dst *string, v string) {
		if v != "" && IsPlaceholderAddress(*dst) {
			*dst = v
			changed = true
		}
	}
	backfill(&c.FirstName, names.FirstName)
	backfill(&c.LastName, names.LastName)
	backfill(&c.CompanyName, names.CompanyName)
	return changed
}
