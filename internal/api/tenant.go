package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sells-group/agency-crm/internal/model"
)

const (
	headerAgency = "X-Agency-ID"
	headerActor  = "X-Actor"
)

type tenantKey struct{}

// tenant builds the TenantContext from headers and rejects requests that do
// not name an agency.
func tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := model.TenantContext{
			AgencyID: strings.TrimSpace(r.Header.Get(headerAgency)),
			Actor:    strings.TrimSpace(r.Header.Get(headerActor)),
		}
		if err := tc.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, headerAgency+" header is required")
			return
		}
		if tc.Actor == "" {
			tc.Actor = "api"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, tc)))
	})
}

func tenantFrom(ctx context.Context) model.TenantContext {
	tc, _ := ctx.Value(tenantKey{}).(model.TenantContext)
	return tc
}
