// Package reconcile turns extracted documents into customer and property
// records: it resolves customers by fiscal code, matches properties, detects
// supply-code conflicts and applies operator decisions (transfers, merges).
package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	store.CustomerStore
	store.AuditStore
}

// SavedHook is called after a customer has been persisted by the engine.
// It must not block; errors are the hook's own concern.
type SavedHook func(ctx context.Context, c *model.Customer)

// Engine orchestrates reconciliation for one store. It holds no per-tenant
// state; every call carries its TenantContext.
type Engine struct {
	store    Store
	resolver *Resolver
	detector *Detector
	now      func() time.Time
	onSaved  SavedHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSavedHook registers a hook run after customer writes.
func WithSavedHook(h SavedHook) Option {
	return func(e *Engine) { e.onSaved = h }
}

// NewEngine creates a reconciliation engine.
func NewEngine(st Store, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		resolver: NewResolver(st),
		detector: NewDetector(st),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Resolver exposes the engine's customer resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Detector exposes the engine's conflict detector.
func (e *Engine) Detector() *Detector { return e.detector }

// loadCustomer fetches a customer and checks it belongs to the tenant.
func (e *Engine) loadCustomer(ctx context.Context, tc model.TenantContext, id string) (*model.Customer, error) {
	c, err := e.store.GetCustomer(ctx, tc.AgencyID, id)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: load customer %s", id)
	}
	if c.AgencyID != tc.AgencyID {
		return nil, eris.Wrapf(ErrCrossTenant, "reconcile: customer %s", id)
	}
	return c, nil
}

func (e *Engine) saved(ctx context.Context, c *model.Customer) {
	if e.onSaved != nil {
		e.onSaved(ctx, c)
	}
}

func (e *Engine) audit(ctx context.Context, tc model.TenantContext, action model.AuditAction, details string) error {
	rec := &model.AuditRecord{
		Timestamp: e.now(),
		Actor:     tc.Actor,
		AgencyID:  tc.AgencyID,
		Action:    action,
		Details:   details,
	}
	return eris.Wrapf(e.store.AppendAudit(ctx, rec), "reconcile: append %s audit", action)
}
