package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/agency-crm/internal/compare"
	"github.com/sells-group/agency-crm/internal/model"
	"github.com/sells-group/agency-crm/internal/ocr"
	"github.com/sells-group/agency-crm/internal/reconcile"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var bill model.ExtractedBill
	if !s.decode(w, r, &bill) {
		return
	}
	res, err := s.engine.AnalyzeBill(r.Context(), tenantFrom(r.Context()), &bill)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type saveRequest struct {
	Bill   *model.ExtractedBill `json:"bill" validate:"required"`
	Choice string               `json:"choice" validate:"required"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.SaveAnalyzedBill(r.Context(), tenantFrom(r.Context()), req.Bill, req.Choice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDocument extracts an uploaded bill or ID card, then analyzes it.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusNotImplemented, "document extraction is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	mime := hdr.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	bill, err := s.extractor.Extract(r.Context(), ocr.Document{Name: hdr.Filename, MIMEType: mime, Data: data})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.engine.AnalyzeBill(r.Context(), tenantFrom(r.Context()), bill)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type transferRequest struct {
	Bill       *model.ExtractedBill `json:"bill" validate:"required"`
	OwnerID    string               `json:"owner_id" validate:"required"`
	PropertyID string               `json:"property_id" validate:"required"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.Transfer(r.Context(), tenantFrom(r.Context()), reconcile.TransferRequest{
		Bill:       req.Bill,
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListCustomers(r.Context(), tenantFrom(r.Context()).AgencyID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCustomer(r.Context(), tenantFrom(r.Context()).AgencyID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type mergeCustomersRequest struct {
	TargetID string `json:"target_id" validate:"required"`
	SourceID string `json:"source_id" validate:"required"`
}

func (s *Server) handleMergeCustomers(w http.ResponseWriter, r *http.Request) {
	var req mergeCustomersRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.engine.MergeCustomers(r.Context(), tenantFrom(r.Context()), req.TargetID, req.SourceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type buildingMergeRequest struct {
	FamilyID  string `json:"family_id" validate:"required"`
	TargetKey string `json:"target_key" validate:"required"`
	SourceKey string `json:"source_key" validate:"required"`
}

func (s *Server) handleMergeBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingMergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.MergeBuilding(r.Context(), tenantFrom(r.Context()), reconcile.BuildingMergeRequest(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	agencyID := tenantFrom(r.Context()).AgencyID
	offers, err := s.store.ListOffers(r.Context(), agencyID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	canvas, err := s.store.ListCanvasOffers(r.Context(), agencyID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	if canvas == nil {
		canvas = []model.CanvasOffer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers, "canvas": canvas})
}

type compareRequest struct {
	Bill         *model.ExtractedBill       `json:"bill" validate:"required"`
	Connectivity *model.ConnectivityDetails `json:"connectivity,omitempty"`
}

type compareResponse struct {
	Energy       []compare.Comparison             `json:"energy"`
	Connectivity []compare.ConnectivityComparison `json:"connectivity,omitempty"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !s.decode(w, r, &req) {
		return
	}
	agencyID := tenantFrom(r.Context()).AgencyID

	offers, err := s.store.ListOffers(r.Context(), agencyID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	energy, err := compare.CompareEnergy(req.Bill, offers, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := compareResponse{Energy: energy}
	if resp.Energy == nil {
		resp.Energy = []compare.Comparison{}
	}

	if req.Connectivity != nil {
		canvas, err := s.store.ListCanvasOffers(r.Context(), agencyID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Connectivity = compare.CompareConnectivity(req.Connectivity, canvas)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}
	recs, err := s.store.ListAudit(r.Context(), tenantFrom(r.Context()).AgencyID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": recs})
}
