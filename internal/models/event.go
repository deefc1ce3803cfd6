// internal/models/event.go
package models

// Event types consumed by external indexers.
const (
	EventClassCreated       = "class_created"
	EventPaymentsAdded      = "payments_added"
	EventPaymentsRemoved    = "payments_removed"
	EventLicenseIssued      = "license_issued"
	EventTraitsChanged      = "traits_changed"
	EventBatchTraitsChanged = "batch_traits_changed"
	EventLicenseDeployed    = "license_deployed"
	EventLicenseStopped     = "license_stopped"
	EventFeeUpdated         = "fee_updated"
	EventFeesWithdrawn      = "fees_withdrawn"
)

// LedgerEvent is the append-only observability journal. Rows are written in
// the same transaction as the state change they describe, so a rolled-back
// operation leaves no event behind.
type LedgerEvent struct {
	BaseModel
	Type    string `json:"type" gorm:"size:50;not null;index"`
	ClassID Address `json:"class_id" gorm:"type:varchar(42);index"`
	Payload JSONB  `json:"payload" gorm:"type:jsonb"`
}
