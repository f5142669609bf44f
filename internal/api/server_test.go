package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agency-crm/internal/extract"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/reconcile"
	"github.com/sells-group/agency-crm/internal/store"
)

type fakeExtractor struct {
	bill *model.ExtractedBill
	err  error
	got  ocr.Document
}

func (f *fakeExtractor) Extract(_ context.Context, doc ocr.Document) (*model.ExtractedBill, error) {
	f.got = doc
	return f.bill, f.err
}

type testEnv struct {
	store   *store.SQLiteStore
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	opts = append([]Option{WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })}, opts...)
	srv := NewServer(reconcile.NewEngine(st), st, opts...)
	return &testEnv{store: st, handler: srv.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, agency string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if agency != "" {
		req.Header.Set(headerAgency, agency)
		req.Header.Set(headerActor, "operatore@agenzia.it")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bill(fiscal, supply, address string) *model.ExtractedBill {
	return &model.ExtractedBill{
		FiscalCode:   fiscal,
		ClientName:   "Mario Rossi",
		Address:      address,
		City:         "Milano",
		Commodity:    model.CommodityElectricity,
		SupplyCode:   supply,
		SupplierName: "Enel",
		DocumentType: model.DocumentBill,

		TotalConsumption:  2700,
		DetectedUnitPrice: 0.25,
		DetectedFixedFee:  10,
	}
}

func TestHealth(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTenantHeaderRequired(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodGet, "/v1/customers", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-Agency-ID")
}

func TestAnalyze_CreatesCustomerScopedToAgency(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/bills/analyze", "ag-1", bill("RSSMRA80A01H501U", "IT001E12345678", "Via Roma 10"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[reconcile.Result](t, rec)
	assert.Equal(t, reconcile.ResultSuccess, res.Kind)
	assert.True(t, res.CustomerCreated)
	require.NotNil(t, res.Customer)

	rec = env.do(t, http.MethodGet, "/v1/customers", "ag-1", nil)
	list := decodeBody[map[string][]model.Customer](t, rec)
	assert.Len(t, list["customers"], 1)

	rec = env.do(t, http.MethodGet, "/v1/customers/"+res.Customer.ID, "ag-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/customers/"+res.Customer.ID, "ag-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/customers", "ag-2", nil)
	assert.JSONEq(t, `{"customers":[]}`, rec.Body.String())
}

func TestAnalyze_MissingFiscalCode(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodPost, "/v1/bills/analyze", "ag-1", bill("", "IT001E12345678", "Via Roma 10"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/bills/analyze", bytes.NewBufferString("{"))
	req.Header.Set(headerAgency, "ag-1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSave_ValidationErrors(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodPost, "/v1/bills/save", "ag-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "required", body.Fields["Bill"])
	assert.Equal(t, "required", body.Fields["Choice"])
}

func TestConflictThenTransfer(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/bills/analyze", "ag-1", bill("RSSMRA80A01H501U", "IT001E12345678", "Via Roma 10"))
	owner := decodeBody[reconcile.Result](t, rec)

	buyer := bill("BNCLRA85C03F205Y", "IT001E12345678", "Via Roma 10")
	buyer.ClientName = "Laura Bianchi"
	rec = env.do(t, http.MethodPost, "/v1/bills/analyze", "ag-1", buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	conflict := decodeBody[reconcile.Result](t, rec)
	require.Equal(t, reconcile.ResultConflict, conflict.Kind)
	assert.Equal(t, owner.Customer.ID, conflict.ConflictOwner.ID)

	rec = env.do(t, http.MethodPost, "/v1/transfers", "ag-1", map[string]any{
		"bill":        buyer,
		"owner_id":    conflict.ConflictOwner.ID,
		"property_id": conflict.ConflictProperty.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tr := decodeBody[reconcile.TransferResult](t, rec)
	assert.True(t, tr.OwnerCreated)
	assert.Equal(t, model.PropertySold, tr.PreviousOwner.PropertyByID(conflict.ConflictProperty.ID).Status)

	rec = env.do(t, http.MethodGet, "/v1/audit?limit=10", "ag-1", nil)
	audit := decodeBody[map[string][]model.AuditRecord](t, rec)
	require.Len(t, audit["audit"], 1)
	assert.Equal(t, model.AuditPropertyTransfer, audit["audit"][0].Action)
	assert.Equal(t, "operatore@agenzia.it", audit["audit"][0].Actor)
}

func TestMergeCustomers_SameCustomer(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodPost, "/v1/customers/merge", "ag-1", map[string]string{"target_id": "c1", "source_id": "c1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMergeBuilding_UnknownFamily(t *testing.T) {
	rec := newTestEnv(t).do(t, http.MethodPost, "/v1/buildings/merge", "ag-1", map[string]string{
		"family_id": "missing", "target_key": "Via Roma 10", "source_key": "Via Roma 10 int 2",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOffersCompare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.UpsertOffer(ctx, &model.Offer{AgencyID: "ag-1", Supplier: "Edison", Name: "Web Luce", Commodity: model.CommodityElectricity, UnitPrice: 0.2, FixedFee: 8}))
	require.NoError(t, env.store.UpsertOffer(ctx, &model.Offer{AgencyID: "ag-2", Supplier: "Other", Name: "Hidden", Commodity: model.CommodityElectricity, UnitPrice: 0.1}))
	require.NoError(t, env.store.UpsertCanvasOffer(ctx, &model.CanvasOffer{AgencyID: "ag-1", Provider: "TIM", Name: "Fibra", MonthlyFee: 24.9}))

	rec := env.do(t, http.MethodGet, "/v1/offers", "ag-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Web Luce")
	assert.NotContains(t, rec.Body.String(), "Hidden")

	rec = env.do(t, http.MethodPost, "/v1/offers/compare", "ag-1", map[string]any{
		"bill":         bill("RSSMRA80A01H501U", "IT001E12345678", "Via Roma 10"),
		"connectivity": model.ConnectivityDetails{MonthlyFee: 29.9},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Energy []struct {
			Savings string `json:"savings"`
		} `json:"energy"`
		Connectivity []struct {
			Savings string `json:"savings"`
		} `json:"connectivity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Energy, 1)
	assert.Equal(t, "159", resp.Energy[0].Savings)
	require.Len(t, resp.Connectivity, 1)
	assert.Equal(t, "60", resp.Connectivity[0].Savings)

	noCommodity := bill("RSSMRA80A01H501U", "", "Via Roma 10")
	noCommodity.Commodity = ""
	rec = env.do(t, http.MethodPost, "/v1/offers/compare", "ag-1", map[string]any{"bill": noCommodity})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func upload(t *testing.T, handler http.Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(headerAgency, "ag-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestDocumentAnalyze(t *testing.T) {
	fx := &fakeExtractor{bill: bill("RSSMRA80A01H501U", "IT001E12345678", "Via Roma 10")}
	env := newTestEnv(t, WithExtractor(fx))

	rec := upload(t, env.handler, "bolletta.pdf", []byte("%PDF-1.4 test"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "bolletta.pdf", fx.got.Name)
	assert.Equal(t, "application/pdf", fx.got.MIMEType)
	assert.Equal(t, reconcile.ResultSuccess, decodeBody[reconcile.Result](t, rec).Kind)

	fx.err = eris.Wrap(extract.ErrExtractionFailed, "extract: bolletta.pdf")
	rec = upload(t, env.handler, "bolletta.pdf", []byte("%PDF-1.4 test"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDocumentAnalyze_NotConfigured(t *testing.T) {
	rec := upload(t, newTestEnv(t).handler, "bolletta.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(eris.Wrap(store.ErrNotFound, "x")))
	assert.Equal(t, http.StatusNotFound, statusFor(reconcile.ErrCrossTenant))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(reconcile.ErrInvalidDecision))
	assert.Equal(t, http.StatusInternalServerError, statusFor(eris.New("disk full")))
}
