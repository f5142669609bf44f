package reconcile

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/model"
)

func TestNameFieldsFromBill(t *testing.T) {
	tests := []struct {
		name   string
		client string
		typ    model.CustomerType
		want   NameFields
	}{
		{"person", "Mario  Rossi", model.CustomerPerson, NameFields{FirstName: "Mario", LastName: "Rossi"}},
		{"person compound surname", "Anna De Luca", model.CustomerPerson, NameFields{FirstName: "Anna", LastName: "De Luca"}},
		{"single token", "Rossi", model.CustomerPerson, NameFields{LastName: "Rossi"}},
		{"company", "Acme S.R.L.", model.CustomerCompany, NameFields{CompanyName: "Acme S.R.L."}},
		{"placeholder", "unknown", model.CustomerPerson, NameFields{}},
		{"empty", "  ", model.CustomerCompany, NameFields{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NameFieldsFromBill(tt.client, tt.typ))
		})
	}
}

func TestResolveOrCreate_Idempotent(t *testing.T) {
	st := newMemStore()
	r := NewResolver(st)
	ctx := context.Background()
	names := NameFields{FirstName: "Mario", LastName: "Rossi"}

	first, created, err := r.ResolveOrCreate(ctx, tenantA, "RSSMRA80A01H501U", model.CustomerPerson, names)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.ResolveOrCreate(ctx, tenantA, " rssmra80a01h501u ", model.CustomerPerson, names)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, st.creates)
	assert.Len(t, st.customers, 1)
	assert.Equal(t, 0, st.updates, "nothing drifted")
}

func TestResolveOrCreate_NewCustomerShape(t *testing.T) {
	st := newMemStore()
	c, created, err := NewResolver(st).ResolveOrCreate(context.Background(), tenantA, "12345678901", model.CustomerCompany, NameFields{CompanyName: "Acme SRL"})
	require.NoError(t, err)
	require.True(t, created)

	assert.Equal(t, "agency-a", c.AgencyID)
	assert.Equal(t, "12345678901", c.FiscalCode)
	assert.Equal(t, model.CustomerCompany, c.Type)
	assert.Equal(t, "Acme SRL", c.CompanyName)
	assert.NotNil(t, c.Properties)
	assert.Empty(t, c.Properties)
	assert.Empty(t, c.Email)
}

func TestResolveOrCreate_ReconcilesDrift(t *testing.T) {
	st := newMemStore()
	id := st.seed(t, model.Customer{
		AgencyID:   "agency-a",
		FiscalCode: "RSSMRA80A01H501U",
		Type:       model.CustomerCompany,
		LastName:   "unknown",
		Properties: []model.Property{},
	})

	c, created, err := NewResolver(st).ResolveOrCreate(context.Background(), tenantA, "RSSMRA80A01H501U", model.CustomerPerson, NameFields{FirstName: "Mario", LastName: "Rossi"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, 1, st.updates)

	stored := st.byID(t, id)
	assert.Equal(t, model.CustomerPerson, stored.Type)
	assert.Equal(t, "Mario", stored.FirstName)
	assert.Equal(t, "Rossi", stored.LastName)
}

func TestResolveOrCreate_KeepsRealNames(t *testing.T) {
	st := newMemStore()
	st.seed(t, model.Customer{
		AgencyID:   "agency-a",
		FiscalCode: "RSSMRA80A01H501U",
		Type:       model.CustomerPerson,
		FirstName:  "Mario",
		LastName:   "Rossi",
	})

	c, _, err := NewResolver(st).ResolveOrCreate(context.Background(), tenantA, "RSSMRA80A01H501U", model.CustomerPerson, NameFields{FirstName: "M.", LastName: "R."})
	require.NoError(t, err)
	assert.Equal(t, "Mario", c.FirstName)
	assert.Equal(t, 0, st.updates)
}

func TestResolveOrCreate_TenantScoped(t *testing.T) {
	st := newMemStore()
	other := st.seed(t, model.Customer{AgencyID: "agency-b", FiscalCode: "RSSMRA80A01H501U", Type: model.CustomerPerson})

	c, created, err := NewResolver(st).ResolveOrCreate(context.Background(), tenantA, "RSSMRA80A01H501U", model.CustomerPerson, NameFields{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, other, c.ID)
	assert.Equal(t, "agency-a", c.AgencyID)
}

func TestResolveOrCreate_Errors(t *testing.T) {
	st := newMemStore()
	r := NewResolver(st)

	_, _, err := r.ResolveOrCreate(context.Background(), tenantA, " - ", model.CustomerPerson, NameFields{})
	assert.True(t, eris.Is(err, ErrMissingFiscalCode))

	_, _, err = r.ResolveOrCreate(context.Background(), model.TenantContext{}, "RSSMRA80A01H501U", model.CustomerPerson, NameFields{})
	assert.Error(t, err)
	assert.Equal(t, 0, st.creates)
}

func TestFind_NoMatch(t *testing.T) {
	c, err := NewResolver(newMemStore()).Find(context.Background(), tenantA, "RSSMRA80A01H501U")
	require.NoError(t, err)
	assert.Nil(t, c)
}
