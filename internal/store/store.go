// Package store persists tenant-scoped CRM documents: customers (with their
// embedded properties), agencies, price-list offers and the audit log.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agency-crm/internal/model"
)

// ErrNotFound is returned (wrapped) when a record does not exist within the
// requested agency.
var ErrNotFound = eris.New("store: not found")

// CustomerStore persists customer documents. Every method is scoped to one
// agency; a record belonging to another agency is reported as ErrNotFound.
type CustomerStore interface {
	ListCustomers(ctx context.Context, agencyID string) ([]model.Customer, error)
	GetCustomer(ctx context.Context, agencyID, id string) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	DeleteCustomer(ctx context.Context, agencyID, id string) error
}

// AgencyStore persists tenants.
type AgencyStore interface {
	CreateAgency(ctx context.Context, a *model.Agency) error
	GetAgency(ctx context.Context, id string) (*model.Agency, error)
	ListAgencies(ctx context.Context) ([]model.Agency, error)
}

// OfferStore persists energy (CTE) and connectivity (canvas) price lists.
type OfferStore interface {
	UpsertOffer(ctx context.Context, o *model.Offer) error
	ListOffers(ctx context.Context, agencyID string) ([]model.Offer, error)
	UpsertCanvasOffer(ctx context.Context, o *model.CanvasOffer) error
	ListCanvasOffers(ctx context.Context, agencyID string) ([]model.CanvasOffer, error)
}

// AuditStore is the append-only audit sink.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec *model.AuditRecord) error
	ListAudit(ctx context.Context, agencyID string, limit int) ([]model.AuditRecord, error)
}

// Store is the full persistence interface.
type Store interface {
	CustomerStore
	AgencyStore
	OfferStore
	AuditStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
