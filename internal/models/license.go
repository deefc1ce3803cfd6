// internal/models/license.go
package models

// License is one issued, uniquely identified asset of an agent class. Title
// to the license is exactly this row's Owner column; the custody ledger only
// reads and verifies it, it never owns license identity itself.
type License struct {
	BaseModel
	ClassID   Address `json:"class_id" gorm:"type:varchar(42);not null;index:idx_licenses_class_license,unique"`
	LicenseID uint64  `json:"license_id" gorm:"not null;index:idx_licenses_class_license,unique"`
	Owner     Address `json:"owner" gorm:"type:varchar(42);not null;index"`

	// Mutable trait state, overwritten only through the issuer's
	// deployer-only entry point.
	Deployments uint64        `json:"deployments" gorm:"not null;default:0"`
	Yield       uint64        `json:"yield" gorm:"not null;default:0"`
	Status      LicenseStatus `json:"status" gorm:"not null;default:0"`
}

func (l *License) Traits() Traits {
	return Traits{Deployments: l.Deployments, Yield: l.Yield, Status: l.Status}
}

func (l *License) SetTraits(t Traits) {
	l.Deployments = t.Deployments
	l.Yield = t.Yield
	l.Status = t.Status
}
