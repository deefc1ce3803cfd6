// internal/services/callbacks.go
package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
)

// Operator-supplied callbacks invoked mid-operation. They run inside the
// host operation's transaction, so anything they transfer rolls back with
// the operation. The services never trust their return values: payment and
// delivery are verified afterwards by balance and ownership deltas.

// MintCallback pays the mint price into the class account during Issue.
type MintCallback interface {
	OnMint(tx *gorm.DB, token models.Address, data []byte) error
}

// DeployCallback delivers the license into ledger custody and pays the
// escrow fee during Deploy.
type DeployCallback interface {
	OnDeploy(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error
}

// StopCallback pays the escrow fee during Stop.
type StopCallback interface {
	OnStop(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error
}

// Func adapters, mainly for tests and in-process operators.

type MintCallbackFunc func(tx *gorm.DB, token models.Address, data []byte) error

func (f MintCallbackFunc) OnMint(tx *gorm.DB, token models.Address, data []byte) error {
	return f(tx, token, data)
}

type DeployCallbackFunc func(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error

func (f DeployCallbackFunc) OnDeploy(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error {
	return f(tx, payer, token, licenseID, data)
}

type StopCallbackFunc func(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error

func (f StopCallbackFunc) OnStop(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error {
	return f(tx, payer, token, licenseID, data)
}

// DeployData is the payload of deploy/stop: the class key resolving the
// issuer plus the trait values pushed atomically with the custody
// transition. Trait values are taken as supplied; the ledger does not derive
// or validate their provenance.
type DeployData struct {
	Class  models.ClassKey `json:"class"`
	Traits models.Traits   `json:"traits"`
}

func DecodeDeployData(raw []byte) (*DeployData, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidArgument
	}
	var data DeployData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidArgument
	}
	if data.Class.Name == "" || data.Class.Symbol == "" || data.Class.Capacity == 0 {
		return nil, ErrInvalidArgument
	}
	return &data, nil
}

func (d *DeployData) Encode() []byte {
	raw, _ := json.Marshal(d)
	return raw
}

// StandardMintCallback pays the mint price from the payer's bank balance.
type StandardMintCallback struct {
	Bank   *TokenService
	Payer  models.Address
	Class  models.Address
	Amount uint64
}

func (c *StandardMintCallback) OnMint(tx *gorm.DB, token models.Address, data []byte) error {
	return c.Bank.Transfer(tx, token, c.Payer, c.Class, c.Amount)
}

// StandardDeployCallback hands the license to the ledger and pays the fee
// from the payer's balance.
type StandardDeployCallback struct {
	Bank   *TokenService
	Issuer *IssuerService
	Class  models.Address
	Ledger models.Address
	Fee    uint64
}

func (c *StandardDeployCallback) OnDeploy(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error {
	if err := c.Issuer.Transfer(tx, c.Class, licenseID, payer, c.Ledger); err != nil {
		return err
	}
	if c.Fee > 0 {
		return c.Bank.Transfer(tx, token, payer, c.Ledger, c.Fee)
	}
	return nil
}

// StandardStopCallback pays the release fee from the payer's balance.
type StandardStopCallback struct {
	Bank   *TokenService
	Ledger models.Address
	Fee    uint64
}

func (c *StandardStopCallback) OnStop(tx *gorm.DB, payer, token models.Address, licenseID uint64, data []byte) error {
	if c.Fee > 0 {
		return c.Bank.Transfer(tx, token, payer, c.Ledger, c.Fee)
	}
	return nil
}
