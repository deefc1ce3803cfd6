// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"

	// Registry
	KeyRegistryInitialized = "registry.initialized"
	KeyClassCreated        = "class.created"
	KeyClassNotFound       = "class.not_found"
	KeyClassExists         = "class.exists"
	KeyPaymentsUpdated     = "payments.updated"

	// Licenses
	KeyLicenseIssued   = "license.issued"
	KeyLicenseNotFound = "license.not_found"
	KeyTraitsUpdated   = "license.traits_updated"

	// Custody
	KeyLicenseDeployed = "custody.deployed"
	KeyLicenseStopped  = "custody.stopped"
	KeyDeployNotFound  = "custody.not_found"
	KeyFeeUpdated      = "custody.fee_updated"
	KeyFeesWithdrawn   = "custody.fees_withdrawn"

	// Bank
	KeyTransferComplete = "bank.transfer_complete"
	KeyApprovalSet      = "bank.approval_set"

	// Admin
	KeyAdminActionSuccess = "admin.action_success"
	KeyAdminAccessDenied  = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
