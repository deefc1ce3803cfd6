// internal/models/custody.go
package models

import "time"

// LedgerState is the singleton row for the custody ledger: its account
// address, owner, the registry it is bound to, and the current escrow fee.
type LedgerState struct {
	BaseModel
	Address  Address `json:"address" gorm:"type:varchar(42);uniqueIndex;not null"`
	Owner    Address `json:"owner" gorm:"type:varchar(42);not null"`
	Registry Address `json:"registry" gorm:"type:varchar(42);not null"`
	Fee      uint64  `json:"fee" gorm:"not null;default:0"`
}

// DeployRecord exists iff the license is currently in escrow. Claimant
// lookups query this same table by (claimant, class), so the record and the
// per-claimant view cannot drift apart.
type DeployRecord struct {
	BaseModel
	ClassID    Address   `json:"class_id" gorm:"type:varchar(42);not null;index:idx_deploy_records_class_license,unique;index:idx_deploy_records_claimant_class,priority:2"`
	LicenseID  uint64    `json:"license_id" gorm:"not null;index:idx_deploy_records_class_license,unique"`
	Claimant   Address   `json:"claimant" gorm:"type:varchar(42);not null;index:idx_deploy_records_claimant_class,priority:1"`
	DeployedAt time.Time `json:"deployed_at" gorm:"not null"`
}
