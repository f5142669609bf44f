package model

import "time"

// AuditAction names a sensitive mutation.
type AuditAction string

const (
	AuditPropertyTransfer AuditAction = "PROPERTY_TRANSFER"
	AuditCustomerMerge    AuditAction = "CUSTOMER_MERGE"
	AuditBuildingMerge    AuditAction = "BUILDING_MERGE"
)

// AuditRecord is an append-only log entry.
type AuditRecord struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     string      `json:"actor"`
	AgencyID  string      `json:"agency_id"`
	Action    AuditAction `json:"action"`
	Details   string      `json:"details"`
}
