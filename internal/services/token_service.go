// internal/services/token_service.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
)

// TokenService is the platform's balance oracle for fungible payment tokens.
// Every fee and mint payment is settled against these rows, so escrow
// verification can compare balance deltas instead of trusting callbacks.
//
// All mutating methods accept the caller's transaction handle; passing nil
// falls back to the service's own connection. Operations that must be atomic
// with license state changes always run on the host transaction.
type TokenService struct {
	db *gorm.DB
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{db: db}
}

func (s *TokenService) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// BalanceOf returns the account's balance of the token. Accounts without a
// row hold zero.
func (s *TokenService) BalanceOf(tx *gorm.DB, token, account models.Address) (uint64, error) {
	if token.IsZero() {
		return 0, ErrZeroToken
	}

	var balance models.TokenBalance
	err := s.conn(tx).Where("token = ? AND account = ?", token, account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}
	return balance.Amount, nil
}

// Allowance returns how much spender may still move out of owner's balance.
func (s *TokenService) Allowance(tx *gorm.DB, token, owner, spender models.Address) (uint64, error) {
	if token.IsZero() {
		return 0, ErrZeroToken
	}

	var allowance models.TokenAllowance
	err := s.conn(tx).Where("token = ? AND owner = ? AND spender = ?", token, owner, spender).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load allowance: %w", err)
	}
	return allowance.Amount, nil
}

// Mint credits freshly created tokens to an account. Administrative entry
// point used for test fixtures and faucets.
func (s *TokenService) Mint(tx *gorm.DB, token, to models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	return s.credit(s.conn(tx), token, to, amount)
}

// Transfer moves tokens between accounts, failing if the sender's balance
// cannot cover the amount.
func (s *TokenService) Transfer(tx *gorm.DB, token, from, to models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroRecipient
	}

	db := s.conn(tx)
	if err := s.debit(db, token, from, amount); err != nil {
		return err
	}
	return s.credit(db, token, to, amount)
}

// Approve sets (not increments) the spender's allowance over owner's tokens.
func (s *TokenService) Approve(tx *gorm.DB, token, owner, spender models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if owner.IsZero() || spender.IsZero() {
		return ErrZeroRecipient
	}

	db := s.conn(tx)
	var allowance models.TokenAllowance
	err := db.Where("token = ? AND owner = ? AND spender = ?", token, owner, spender).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		allowance = models.TokenAllowance{Token: token, Owner: owner, Spender: spender, Amount: amount}
		if err := db.Create(&allowance).Error; err != nil {
			return fmt.Errorf("failed to create allowance: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load allowance: %w", err)
	}

	allowance.Amount = amount
	if err := db.Save(&allowance).Error; err != nil {
		return fmt.Errorf("failed to update allowance: %w", err)
	}
	return nil
}

// TransferFrom moves owner's tokens on the strength of a prior approval,
// decrementing the spender's allowance.
func (s *TokenService) TransferFrom(tx *gorm.DB, token, spender, from, to models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if spender.IsZero() || from.IsZero() || to.IsZero() {
		return ErrZeroRecipient
	}

	db := s.conn(tx)
	var allowance models.TokenAllowance
	err := db.Where("token = ? AND owner = ? AND spender = ?", token, from, spender).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && allowance.Amount < amount) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("failed to load allowance: %w", err)
	}

	if err := s.debit(db, token, from, amount); err != nil {
		return err
	}
	if err := s.credit(db, token, to, amount); err != nil {
		return err
	}

	allowance.Amount -= amount
	if err := db.Save(&allowance).Error; err != nil {
		return fmt.Errorf("failed to update allowance: %w", err)
	}
	return nil
}

func (s *TokenService) credit(db *gorm.DB, token, account models.Address, amount uint64) error {
	var balance models.TokenBalance
	err := db.Where("token = ? AND account = ?", token, account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = models.TokenBalance{Token: token, Account: account, Amount: amount}
		if err := db.Create(&balance).Error; err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	balance.Amount += amount
	if err := db.Save(&balance).Error; err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func (s *TokenService) debit(db *gorm.DB, token, account models.Address, amount uint64) error {
	var balance models.TokenBalance
	err := db.Where("token = ? AND account = ?", token, account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	if balance.Amount < amount {
		return ErrInsufficientBalance
	}

	balance.Amount -= amount
	if err := db.Save(&balance).Error; err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}
