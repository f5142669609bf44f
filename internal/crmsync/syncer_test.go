package crmsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/pkg/salesforce"
)

type mockSF struct {
	mock.Mock
}

func (m *mockSF) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(out)
		return nil
	}
	return args.Error(0)
}

func (m *mockSF) InsertOne(ctx context.Context, obj string, record map[string]any) (string, error) {
	args := m.Called(ctx, obj, record)
	return args.String(0), args.Error(1)
}

func (m *mockSF) UpdateOne(ctx context.Context, obj, id string, fields map[string]any) error {
	args := m.Called(ctx, obj, id, fields)
	return args.Error(0)
}

func (m *mockSF) UpdateCollection(ctx context.Context, obj string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
	args := m.Called(ctx, obj, records)
	res, _ := args.Get(0).([]salesforce.CollectionResult)
	return res, args.Error(1)
}

func customer() *model.Customer {
	return &model.Customer{
		ID:         "c1",
		AgencyID:   "ag-1",
		FiscalCode: "RSSMRA80A01H501U",
		Type:       model.CustomerPerson,
		FirstName:  "Mario",
		LastName:   "Rossi",
		Phone:      "3331234567",
		Properties: []model.Property{
			{ID: "p1", Address: "Via Po 1", City: "Torino", Status: model.PropertyActive},
			{ID: "p2", Address: "Via Roma 10", City: "Milano", Zip: "20100", Status: model.PropertyActive, IsResident: true},
			{ID: "p3", Address: "Via Sold 3", Status: model.PropertySold, IsResident: true},
		},
	}
}

func noAccount(any) {}

func TestSyncCustomer_CreatesAccount(t *testing.T) {
	sf := new(mockSF)
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(noAccount)
	sf.On("InsertOne", mock.Anything, "Account", mock.MatchedBy(func(f map[string]any) bool {
		return f["Name"] == "Mario Rossi" &&
			f[salesforce.FiscalCodeField] == "RSSMRA80A01H501U" &&
			f["Type"] == "Household" &&
			f["BillingStreet"] == "Via Roma 10" &&
			f["BillingPostalCode"] == "20100"
	})).Return("001new", nil)

	id, err := NewSyncer(sf).SyncCustomer(context.Background(), customer())
	require.NoError(t, err)
	assert.Equal(t, "001new", id)
	sf.AssertExpectations(t)
	sf.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncCustomer_UpdatesExisting(t *testing.T) {
	sf := new(mockSF)
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(func(out any) {
		*(out.(*[]salesforce.Account)) = []salesforce.Account{{ID: "001A"}}
	})
	sf.On("UpdateOne", mock.Anything, "Account", "001A", mock.Anything).Return(nil)

	id, err := NewSyncer(sf).SyncCustomer(context.Background(), customer())
	require.NoError(t, err)
	assert.Equal(t, "001A", id)
	sf.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncCustomer_Errors(t *testing.T) {
	_, err := NewSyncer(new(mockSF)).SyncCustomer(context.Background(), &model.Customer{ID: "c1"})
	assert.EqualError(t, err, "crmsync: customer has no fiscal code")

	sf := new(mockSF)
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("session expired"))
	_, err = NewSyncer(sf).SyncCustomer(context.Background(), customer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crmsync: lookup account")
}

func TestHook_SwallowsErrors(t *testing.T) {
	sf := new(mockSF)
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(noAccount)
	sf.On("InsertOne", mock.Anything, "Account", mock.Anything).Return("", errors.New("validation"))

	hook := NewSyncer(sf).Hook()
	assert.NotPanics(t, func() { hook(context.Background(), customer()) })
	sf.AssertNumberOfCalls(t, "InsertOne", 1)
}

func TestAccountFields(t *testing.T) {
	c := &model.Customer{
		AgencyID:    "ag-1",
		FiscalCode:  "01234567890",
		Type:        model.CustomerCompany,
		CompanyName: "Bianchi Srl",
		Properties:  []model.Property{{Address: "unknown", Status: model.PropertyActive}},
	}
	f := accountFields(c)
	assert.Equal(t, "Bianchi Srl", f["Name"])
	assert.Equal(t, "Business", f["Type"])
	assert.NotContains(t, f, "BillingStreet")
	assert.NotContains(t, f, "Phone")

	c.CompanyName = ""
	assert.Equal(t, "01234567890", accountFields(c)["Name"])
}

func TestSyncAll(t *testing.T) {
	existing := customer()
	fresh := customer()
	fresh.ID, fresh.FiscalCode = "c2", "BNCLRA85C03F205Y"
	noCode := model.Customer{ID: "c3"}

	sf := new(mockSF)
	sf.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, existing.FiscalCode)
	}), mock.Anything).Return(func(out any) {
		*(out.(*[]salesforce.Account)) = []salesforce.Account{{ID: "001A"}}
	})
	sf.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(noAccount)
	sf.On("InsertOne", mock.Anything, "Account", mock.Anything).Return("001B", nil)
	sf.On("UpdateCollection", mock.Anything, "Account", mock.MatchedBy(func(recs []salesforce.CollectionRecord) bool {
		return len(recs) == 1 && recs[0].ID == "001A"
	})).Return([]salesforce.CollectionResult{{ID: "001A", Success: true}}, nil)

	report, err := NewSyncer(sf).SyncAll(context.Background(), []model.Customer{*existing, *fresh, noCode})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, []string{"c3"}, report.Failed)
	sf.AssertExpectations(t)
}
