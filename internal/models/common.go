// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate fills the UUID primary key. Generating it client-side keeps
// the schema portable across postgres and sqlite.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return nil
	}
}

// Address identifies an account, token, class issuer or the custody ledger.
// Stored as a 0x-prefixed, lowercase, 40-hex-digit string.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) Valid() bool {
	return addressPattern.MatchString(string(a))
}

func (a Address) String() string { return string(a) }

// NormalizeAddress lowercases an address so lookups are case-insensitive.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// LicenseStatus is the deployment state rendered into metadata.
type LicenseStatus uint8

const (
	LicenseStatusInactive LicenseStatus = 0
	LicenseStatusDeployed LicenseStatus = 1
)

func (s LicenseStatus) String() string {
	if s == LicenseStatusDeployed {
		return "DEPLOYED"
	}
	return "INACTIVE"
}

// Traits is the mutable per-license attribute set. Only the custody ledger
// (the registry's authority) may overwrite it once a license is issued.
type Traits struct {
	Deployments uint64        `json:"deployments"`
	Yield       uint64        `json:"yield"`
	Status      LicenseStatus `json:"status"`
}

type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeOperator UserType = "operator"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// Metadata is the rendered license document served to indexers and wallets.
type Metadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// RenderMetadata composes the metadata document for one license. Pure
// function of the stored class and trait state.
func RenderMetadata(class *AgentClass, licenseID uint64, traits Traits) Metadata {
	return Metadata{
		Name:        fmt.Sprintf("%s #%d", class.Name, licenseID),
		Description: class.Description,
		Image:       fmt.Sprintf("%s%d.png", class.BaseLocator, licenseID),
		Attributes: []MetadataAttribute{
			{TraitType: "status", Value: traits.Status.String()},
			{TraitType: "deployments", Value: fmt.Sprintf("%d", traits.Deployments)},
			{TraitType: "yield", Value: fmt.Sprintf("%d", traits.Yield)},
		},
	}
}
