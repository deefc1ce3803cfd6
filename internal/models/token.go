// internal/models/token.go
package models

// TokenBalance is one account's balance of one fungible payment token. The
// token bank is the platform's balance oracle: fee and mint payments are
// always verified against these rows by delta, never by callback claims.
type TokenBalance struct {
	BaseModel
	Token   Address `json:"token" gorm:"type:varchar(42);not null;index:idx_token_balances_token_account,unique"`
	Account Address `json:"account" gorm:"type:varchar(42);not null;index:idx_token_balances_token_account,unique"`
	Amount  uint64  `json:"amount" gorm:"not null;default:0"`
}

// TokenAllowance lets a spender move up to Amount of Owner's tokens via
// TransferFrom.
type TokenAllowance struct {
	BaseModel
	Token   Address `json:"token" gorm:"type:varchar(42);not null;index:idx_token_allowances_key,unique"`
	Owner   Address `json:"owner" gorm:"type:varchar(42);not null;index:idx_token_allowances_key,unique"`
	Spender Address `json:"spender" gorm:"type:varchar(42);not null;index:idx_token_allowances_key,unique"`
	Amount  uint64  `json:"amount" gorm:"not null;default:0"`
}
