// internal/services/errors.go
package services

import "errors"

// Sentinel errors returned by the registry, issuer, custody and bank
// services. Handlers map these onto HTTP statuses; tests assert on them
// with errors.Is.
var (
	// Construction and initialization
	ErrZeroIssuer         = errors.New("issuer template address is zero")
	ErrEmptyList          = errors.New("payment token list is empty")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrZeroOwner          = errors.New("owner address is zero")

	// Class registration
	ErrAlreadyExists    = errors.New("agent class already exists")
	ErrClassNotFound    = errors.New("agent class not found")
	ErrTooManyPayments  = errors.New("payment token list exceeds the allow-list cap")
	ErrZeroToken        = errors.New("token address is zero")
	ErrRoyaltyOverflow  = errors.New("royalty exceeds 100%")
	ErrInvalidCapacity  = errors.New("capacity is zero or above the platform maximum")
	ErrZeroPrice        = errors.New("mint price is zero")
	ErrNameTooShort     = errors.New("class name is too short")
	ErrSymbolTooShort   = errors.New("class symbol is too short")

	// Issuance
	ErrZeroRecipient       = errors.New("recipient address is zero")
	ErrCapacityExceeded    = errors.New("class capacity exhausted")
	ErrInsufficientPayment = errors.New("payment below mint price")
	ErrNotOperator         = errors.New("caller is not the trait operator")
	ErrNoSuchLicense       = errors.New("license does not exist")
	ErrNotPayable          = errors.New("token is not on the payment allow-list")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrNotOwner            = errors.New("caller does not own the license")

	// Custody
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyDeployed  = errors.New("license is already deployed")
	ErrNotDeployed      = errors.New("license is not deployed")
	ErrNotReceived      = errors.New("license was not delivered to the ledger")
	ErrInsufficientFee  = errors.New("fee payment not received in full")
	ErrNotTransferred   = errors.New("license was not returned to the claimant")

	// Concurrency and binding
	ErrReentrantCall  = errors.New("reentrant call rejected")
	ErrForeignContext = errors.New("operation bound to a different registry")
)
