package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/store"
)

// memStore is a document store that copies on every read and write, so
// engine mutations only become visible once persisted.
type memStore struct {
	customers []model.Customer
	audit     []model.AuditRecord

	creates, updates, deletes int

	failUpdate map[string]error
	failDelete error
	failAudit  error
}

func newMemStore() *memStore {
	return &memStore{failUpdate: make(map[string]error)}
}

func clone(t testing.TB, c model.Customer) model.Customer {
	t.Helper()
	b, err := json.Marshal(c)
	require.NoError(t, err)
	var out model.Customer
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func copyCustomer(c model.Customer) model.Customer {
	b, _ := json.Marshal(c)
	var out model.Customer
	_ = json.Unmarshal(b, &out)
	return out
}

func (m *memStore) ListCustomers(_ context.Context, agencyID string) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range m.customers {
		if c.AgencyID == agencyID {
			out = append(out, copyCustomer(c))
		}
	}
	return out, nil
}

func (m *memStore) GetCustomer(_ context.Context, agencyID, id string) (*model.Customer, error) {
	for _, c := range m.customers {
		if c.AgencyID == agencyID && c.ID == id {
			cp := copyCustomer(c)
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateCustomer(_ context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Properties == nil {
		c.Properties = []model.Property{}
	}
	m.creates++
	m.customers = append(m.customers, copyCustomer(*c))
	return nil
}

func (m *memStore) UpdateCustomer(_ context.Context, c *model.Customer) error {
	if err := m.failUpdate[c.ID]; err != nil {
		return err
	}
	for i := range m.customers {
		if m.customers[i].AgencyID == c.AgencyID && m.customers[i].ID == c.ID {
			m.updates++
			m.customers[i] = copyCustomer(*c)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) DeleteCustomer(_ context.Context, agencyID, id string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	for i := range m.customers {
		if m.customers[i].AgencyID == agencyID && m.customers[i].ID == id {
			m.deletes++
			m.customers = append(m.customers[:i], m.customers[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) AppendAudit(_ context.Context, rec *model.AuditRecord) error {
	if m.failAudit != nil {
		return m.failAudit
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	m.audit = append(m.audit, *rec)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, agencyID string, limit int) ([]model.AuditRecord, error) {
	var out []model.AuditRecord
	for _, r := range m.audit {
		if r.AgencyID == agencyID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// seed stores c as-is and returns its id.
func (m *memStore) seed(t testing.TB, c model.Customer) string {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	m.customers = append(m.customers, clone(t, c))
	return c.ID
}

func (m *memStore) byID(t testing.TB, id string) model.Customer {
	t.Helper()
	for _, c := range m.customers {
		if c.ID == id {
			return copyCustomer(c)
		}
	}
	t.Fatalf("customer %s not in store", id)
	return model.Customer{}
}

func (m *memStore) has(id string) bool {
	for _, c := range m.customers {
		if c.ID == id {
			return true
		}
	}
	return false
}

var (
	tenantA = model.TenantContext{AgencyID: "agency-a", Actor: "op@agency-a"}
	tenantB = model.TenantContext{AgencyID: "agency-b", Actor: "op@agency-b"}

	fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
)

func newTestEngine(st *memStore) *Engine {
	return NewEngine(st, WithClock(func() time.Time { return fixedNow }))
}

func boolPtr(b bool) *bool { return &b }

func electricityProperty(id, addr, code string, status model.PropertyStatus) model.Property {
	return model.Property{
		ID:          id,
		Address:     addr,
		City:        "Torino",
		Status:      status,
		Electricity: &model.CommodityDetails{Supplier: "Enel", Code: code},
	}
}
