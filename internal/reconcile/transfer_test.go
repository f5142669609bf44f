package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/model"
)

const transferCode = "IT001E12345678"

func seedTransfer(t *testing.T) (*memStore, string, string) {
	t.Helper()
	st := newMemStore()
	a := st.seed(t, model.Customer{
		AgencyID:   "agency-a",
		FiscalCode: "VRDGPP70B02L219X",
		Type:       model.CustomerPerson,
		Properties: []model.Property{
			electricityProperty("pa", "Via Roma 10", transferCode, model.PropertyActive),
			electricityProperty("pb", "Via Po 2", "IT001E00000002", model.PropertyActive),
		},
	})
	b := st.seed(t, model.Customer{
		AgencyID:   "agency-a",
		FiscalCode: "RSSMRA80A01H501U",
		Type:       model.CustomerPerson,
		FirstName:  "Mario",
		LastName:   "Rossi",
		Properties: []model.Property{},
	})
	return st, a, b
}

func transferBill() *model.ExtractedBill {
	return &model.ExtractedBill{
		FiscalCode:   "RSSMRA80A01H501U",
		ClientName:   "Mario Rossi",
		Address:      "Via Roma 10",
		City:         "Torino",
		Commodity:    model.CommodityElectricity,
		SupplyCode:   transferCode,
		SupplierName: "Hera",
		DocumentType: model.DocumentBill,
	}
}

func countActive(customers []model.Customer, code string) int {
	n := 0
	for _, c := range customers {
		for _, p := range c.Properties {
			if p.Status == model.PropertyActive && p.HasSupplyCode(code) {
				n++
			}
		}
	}
	return n
}

func TestTransfer_Postcondition(t *testing.T) {
	st, a, b := seedTransfer(t)
	e := newTestEngine(st)

	res, err := e.Transfer(context.Background(), tenantA, TransferRequest{Bill: transferBill(), OwnerID: a, PropertyID: "pa"})
	require.NoError(t, err)
	assert.False(t, res.OwnerCreated)
	assert.Equal(t, b, res.NewOwner.ID)

	oldOwner := st.byID(t, a)
	require.Len(t, oldOwner.Properties, 2, "sold property is kept")
	assert.Equal(t, model.PropertySold, oldOwner.Properties[0].Status)
	assert.Equal(t, model.PropertyActive, oldOwner.Properties[1].Status)

	newOwner := st.byID(t, b)
	require.Len(t, newOwner.Properties, 1)
	p := newOwner.Properties[0]
	assert.NotEqual(t, "pa", p.ID)
	assert.Equal(t, res.PropertyID, p.ID)
	assert.Equal(t, model.PropertyActive, p.Status)
	assert.True(t, p.IsResident)
	assert.Equal(t, "Hera", p.Electricity.Supplier)

	assert.Equal(t, 1, countActive(st.customers, transferCode))

	require.Len(t, st.audit, 1)
	rec := st.audit[0]
	assert.Equal(t, model.AuditPropertyTransfer, rec.Action)
	assert.Equal(t, "op@agency-a", rec.Actor)
	assert.Equal(t, "agency-a", rec.AgencyID)
	assert.Equal(t, fixedNow, rec.Timestamp)
	assert.Equal(t, transferCode+" -> RSSMRA80A01H501U", rec.Details)
}

func TestTransfer_PaddedSupplyCode(t *testing.T) {
	st, a, b := seedTransfer(t)
	bill := transferBill()
	bill.SupplyCode = " it001e 12345678 "

	_, err := newTestEngine(st).Transfer(context.Background(), tenantA, TransferRequest{Bill: bill, OwnerID: a, PropertyID: "pa"})
	require.NoError(t, err)

	assert.Equal(t, 1, countActive(st.customers, transferCode))
	assert.Equal(t, transferCode, st.byID(t, b).Properties[0].Electricity.Code)
	assert.Equal(t, " it001e 12345678 ", bill.SupplyCode, "caller's bill is not modified")
	assert.Equal(t, transferCode+" -> RSSMRA80A01H501U", st.audit[0].Details)
}

func TestTransfer_CreatesNewOwner(t *testing.T) {
	st, a, _ := seedTransfer(t)
	bill := transferBill()
	bill.FiscalCode = "BNCLRA85C03F205Y"
	bill.ClientName = "Laura Bianchi"
	bill.IsResident = boolPtr(false)

	res, err := newTestEngine(st).Transfer(context.Background(), tenantA, TransferRequest{Bill: bill, OwnerID: a, PropertyID: "pa"})
	require.NoError(t, err)
	assert.True(t, res.OwnerCreated)
	assert.Len(t, st.customers, 3)
	assert.Equal(t, "Laura", res.NewOwner.FirstName)
	assert.False(t, res.NewOwner.Properties[0].IsResident)
}

func TestTransfer_PlaceholderAddressKeepsLocation(t *testing.T) {
	st, a, b := seedTransfer(t)
	bill := transferBill()
	bill.Address = ""

	_, err := newTestEngine(st).Transfer(context.Background(), tenantA, TransferRequest{Bill: bill, OwnerID: a, PropertyID: "pa"})
	require.NoError(t, err)
	assert.Equal(t, "Via Roma 10", st.byID(t, b).Properties[0].Address)
}

func TestTransfer_Rejects(t *testing.T) {
	st, a, _ := seedTransfer(t)
	e := newTestEngine(st)
	ctx := context.Background()

	_, err := e.Transfer(ctx, tenantA, TransferRequest{Bill: transferBill(), OwnerID: a, PropertyID: "nope"})
	assert.True(t, eris.Is(err, ErrInvalidDecision))

	_, err = e.Transfer(ctx, tenantA, TransferRequest{Bill: transferBill(), OwnerID: a, PropertyID: "pb"})
	assert.True(t, eris.Is(err, ErrInvalidDecision), "property does not carry the code")

	same := transferBill()
	same.FiscalCode = "vrdgpp70b02l219x"
	_, err = e.Transfer(ctx, tenantA, TransferRequest{Bill: same, OwnerID: a, PropertyID: "pa"})
	assert.True(t, eris.Is(err, ErrSameCustomer))

	_, err = e.Transfer(ctx, tenantB, TransferRequest{Bill: transferBill(), OwnerID: a, PropertyID: "pa"})
	assert.Error(t, err, "owner is invisible from another tenant")

	assert.Equal(t, 0, st.updates)
	assert.Empty(t, st.audit)
}

func TestTransfer_PartialFailureSurfaced(t *testing.T) {
	st, a, b := seedTransfer(t)
	boom := errors.New("write failed")
	st.failUpdate[b] = boom

	_, err := newTestEngine(st).Transfer(context.Background(), tenantA, TransferRequest{Bill: transferBill(), OwnerID: a, PropertyID: "pa"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "write failed")

	// The old owner was already written and is not rolled back.
	assert.Equal(t, model.PropertySold, st.byID(t, a).Properties[0].Status)
	assert.Empty(t, st.byID(t, b).Properties)
	assert.Empty(t, st.audit)
}
