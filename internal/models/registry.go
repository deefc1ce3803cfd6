// internal/models/registry.go
package models

// RegistryState is the singleton row describing the platform registry. The
// authority address points at the custody ledger; issuers resolve it to gate
// their deployer-only trait updates.
type RegistryState struct {
	BaseModel
	Address     Address `json:"address" gorm:"type:varchar(42);uniqueIndex;not null"`
	Owner       Address `json:"owner" gorm:"type:varchar(42);not null"`
	Authority   Address `json:"authority" gorm:"type:varchar(42);not null"`
	Initialized bool    `json:"initialized" gorm:"default:false"`
}

// AgentClass is one license issuer: a named, capacity-bounded family of
// licenses. Its address is derived deterministically from the class key
// (name, symbol, capacity), so the same key always resolves to the same
// issuer and duplicates are detectable.
type AgentClass struct {
	BaseModel
	Address     Address `json:"address" gorm:"type:varchar(42);uniqueIndex;not null"`
	Name        string  `json:"name" gorm:"size:32;not null;index:idx_agent_classes_key,unique"`
	Symbol      string  `json:"symbol" gorm:"size:8;not null;index:idx_agent_classes_key,unique"`
	Capacity    uint64  `json:"capacity" gorm:"not null;index:idx_agent_classes_key,unique"`
	Description string  `json:"description" gorm:"type:text"`
	BaseLocator string  `json:"base_locator" gorm:"size:255"`
	MintPrice   uint64  `json:"mint_price" gorm:"not null"`
	RoyaltyBps  uint16  `json:"royalty_bps" gorm:"not null"`
	Owner       Address `json:"owner" gorm:"type:varchar(42);not null;index"`

	// NextID is the monotonic issuance counter, starting at 1. A license id
	// is valid iff 1 <= id < NextID.
	NextID uint64 `json:"next_id" gorm:"not null;default:1"`
}

// ClassKey is the immutable identity of an agent class.
type ClassKey struct {
	Name     string `json:"name" validate:"required,min=4,max=32"`
	Symbol   string `json:"symbol" validate:"required,min=1,max=8"`
	Capacity uint64 `json:"capacity" validate:"required,min=1"`
}

func (c *AgentClass) Key() ClassKey {
	return ClassKey{Name: c.Name, Symbol: c.Symbol, Capacity: c.Capacity}
}

// PaymentToken is one entry of the registry-owned payment allow-list.
type PaymentToken struct {
	BaseModel
	Token Address `json:"token" gorm:"type:varchar(42);uniqueIndex;not null"`
}
