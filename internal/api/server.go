// Package api exposes the reconciliation engine over HTTP. Every /v1 route is
// tenant-scoped by the X-Agency-ID header; X-Actor names the operator for the
// audit log.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/agency-crm/internal/extract"
	"github.com/sells-group/agency-crm/internal/reconcile"
	"github.com/sells-group/agency-crm/internal/store"
)

// maxUploadBytes bounds document uploads.
const maxUploadBytes = 20 << 20

// Store is the persistence the API reads from directly.
type Store interface {
	store.CustomerStore
	store.OfferStore
	store.AuditStore
}

// Server serves the HTTP API.
type Server struct {
	engine    *reconcile.Engine
	store     Store
	extractor extract.Extractor
	validate  *validator.Validate
	origins   []string
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithExtractor enables document uploads on /v1/documents/analyze.
func WithExtractor(x extract.Extractor) Option {
	return func(s *Server) { s.extractor = x }
}

// WithCORSOrigins sets the allowed CORS origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithClock overrides the clock used to skip expired offers.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a Server.
func NewServer(engine *reconcile.Engine, st Store, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		store:    st,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerAgency, headerActor},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(tenant)

		r.Post("/bills/analyze", s.handleAnalyze)
		r.Post("/bills/save", s.handleSave)
		r.Post("/documents/analyze", s.handleDocument)
		r.Post("/transfers", s.handleTransfer)

		r.Get("/customers", s.handleListCustomers)
		r.Get("/customers/{id}", s.handleGetCustomer)
		r.Post("/customers/merge", s.handleMergeCustomers)
		r.Post("/buildings/merge", s.handleMergeBuilding)

		r.Get("/offers", s.handleListOffers)
		r.Post("/offers/compare", s.handleCompare)

		r.Get("/audit", s.handleListAudit)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
