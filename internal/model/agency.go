package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Agency is the tenant boundary. It owns customers, offers and users.
type Agency struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FiscalID  string    `json:"fiscal_id,omitempty"`
	Branches  []Branch  `json:"branches,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Branch is a physical office of an agency.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// User is an operator acting on behalf of an agency.
type User struct {
	ID       string `json:"id"`
	AgencyID string `json:"agency_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// TenantContext scopes every core operation to one agency and names the
// operator for audit records.
type TenantContext struct {
	AgencyID string `json:"agency_id"`
	Actor    string `json:"actor"`
}

// Validate rejects a context without an agency.
func (tc TenantContext) Validate() error {
	if tc.AgencyID == "" {
		return eris.New("tenant: agency id is required")
	}
	return nil
}
