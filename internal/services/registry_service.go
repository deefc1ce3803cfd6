// internal/services/registry_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/config"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/utils"
)

// RegistryService owns the class-key to issuer mapping and the payment token
// allow-list. Class addresses are derived deterministically from the key, so
// the same (name, symbol, capacity) always resolves to the same issuer and a
// duplicate registration is detectable instead of minting a divergent twin.
type RegistryService struct {
	db     *gorm.DB
	cfg    *config.Config
	events *EventService
	logger *logrus.Logger

	// address is the canonical registry identity this service is bound to.
	// Mutating entry points refuse to run against a persisted registry row
	// with a different identity.
	address models.Address
}

type RegisterClassRequest struct {
	Owner       models.Address `json:"owner" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Symbol      string         `json:"symbol" validate:"required"`
	Capacity    uint64         `json:"capacity" validate:"required"`
	Description string         `json:"description,omitempty"`
	BaseLocator string         `json:"base_locator,omitempty"`
	MintPrice   uint64         `json:"mint_price" validate:"required"`
	RoyaltyBps  uint16         `json:"royalty_bps"`
}

func NewRegistryService(db *gorm.DB, cfg *config.Config, events *EventService, logger *logrus.Logger) *RegistryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RegistryService{db: db, cfg: cfg, events: events, logger: logger}
}

// Bind pins the service to a specific registry identity. Used by the custody
// ledger wiring; a mismatch with the persisted row fails ErrForeignContext.
func (s *RegistryService) Bind(address models.Address) {
	s.address = address
}

func (s *RegistryService) guard(state *models.RegistryState) error {
	if s.address != "" && state.Address != s.address {
		return ErrForeignContext
	}
	s.address = state.Address
	return nil
}

func (s *RegistryService) loadState(db *gorm.DB) (*models.RegistryState, error) {
	var state models.RegistryState
	err := db.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry state: %w", err)
	}
	if !state.Initialized {
		return nil, ErrNotInitialized
	}
	return &state, nil
}

// Initialize activates the registry exactly once, binding the issuer
// authority (the custody ledger's identity) and seeding the allow-list.
func (s *RegistryService) Initialize(owner, authority models.Address, initialPayments []models.Address) (*models.RegistryState, error) {
	if authority.IsZero() {
		return nil, ErrZeroIssuer
	}
	if owner.IsZero() {
		return nil, ErrZeroOwner
	}
	if len(initialPayments) == 0 {
		return nil, ErrEmptyList
	}
	for _, token := range initialPayments {
		if token.IsZero() {
			return nil, ErrEmptyList
		}
	}
	if len(initialPayments) > s.cfg.Registry.MaxPaymentTokens {
		return nil, ErrTooManyPayments
	}

	var state *models.RegistryState
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RegistryState{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check registry state: %w", err)
		}
		if count > 0 {
			return ErrAlreadyInitialized
		}

		state = &models.RegistryState{
			Address:     utils.DeriveAddress("registry", owner.String()),
			Owner:       owner,
			Authority:   authority,
			Initialized: true,
		}
		if err := tx.Create(state).Error; err != nil {
			return fmt.Errorf("failed to create registry state: %w", err)
		}

		for _, token := range initialPayments {
			if err := s.addPayment(tx, token); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.address = state.Address
	s.logger.WithFields(logrus.Fields{
		"registry":  state.Address,
		"authority": authority,
	}).Info("registry initialized")

	return state, nil
}

// RegisterClass creates the issuer for a class key. Constructor validation
// runs here, atomically with creation, so a class row never exists with
// out-of-range parameters.
func (s *RegistryService) RegisterClass(req *RegisterClassRequest) (*models.AgentClass, error) {
	if req.Owner.IsZero() {
		return nil, ErrZeroOwner
	}
	if req.RoyaltyBps > 10000 {
		return nil, ErrRoyaltyOverflow
	}
	if req.Capacity == 0 || req.Capacity > s.cfg.Registry.MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	if req.MintPrice == 0 {
		return nil, ErrZeroPrice
	}
	if len(req.Name) <= 3 {
		return nil, ErrNameTooShort
	}
	if len(req.Symbol) < 1 {
		return nil, ErrSymbolTooShort
	}

	var class *models.AgentClass
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if err := s.guard(state); err != nil {
			return err
		}

		address := utils.DeriveClassAddress(req.Name, req.Symbol, req.Capacity)

		var existing models.AgentClass
		err = tx.Where("address = ?", address).First(&existing).Error
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check class key: %w", err)
		}

		class = &models.AgentClass{
			Address:     address,
			Name:        req.Name,
			Symbol:      req.Symbol,
			Capacity:    req.Capacity,
			Description: req.Description,
			BaseLocator: req.BaseLocator,
			MintPrice:   req.MintPrice,
			RoyaltyBps:  req.RoyaltyBps,
			Owner:       req.Owner,
			NextID:      1,
		}
		if err := tx.Create(class).Error; err != nil {
			return fmt.Errorf("failed to create class: %w", err)
		}

		return s.events.Emit(tx, models.EventClassCreated, class.Address, models.JSONB{
			"name":     class.Name,
			"symbol":   class.Symbol,
			"capacity": class.Capacity,
			"owner":    class.Owner,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"class": class.Address,
		"name":  class.Name,
	}).Info("agent class registered")

	return class, nil
}

// SetPayments adds tokens to the allow-list. Adding a token already present
// is a no-op, not an error.
func (s *RegistryService) SetPayments(caller models.Address, tokens []models.Address) error {
	if len(tokens) == 0 {
		return ErrEmptyList
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if err := s.guard(state); err != nil {
			return err
		}
		if caller != state.Owner {
			return ErrNotOwner
		}

		for _, token := range tokens {
			if token.IsZero() {
				return ErrZeroToken
			}
			if err := s.addPayment(tx, token); err != nil {
				return err
			}
		}

		return s.events.Emit(tx, models.EventPaymentsAdded, "", models.JSONB{
			"tokens": tokens,
		})
	})
}

// RemovePayments deletes tokens from the allow-list. Removing an absent
// token is a no-op.
func (s *RegistryService) RemovePayments(caller models.Address, tokens []models.Address) error {
	if len(tokens) == 0 {
		return ErrEmptyList
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if err := s.guard(state); err != nil {
			return err
		}
		if caller != state.Owner {
			return ErrNotOwner
		}

		for _, token := range tokens {
			if token.IsZero() {
				return ErrZeroToken
			}
			if err := tx.Unscoped().Where("token = ?", token).Delete(&models.PaymentToken{}).Error; err != nil {
				return fmt.Errorf("failed to remove payment token: %w", err)
			}
		}

		return s.events.Emit(tx, models.EventPaymentsRemoved, "", models.JSONB{
			"tokens": tokens,
		})
	})
}

func (s *RegistryService) addPayment(tx *gorm.DB, token models.Address) error {
	var existing models.PaymentToken
	err := tx.Where("token = ?", token).First(&existing).Error
	if err == nil {
		return nil // already on the list
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check payment token: %w", err)
	}

	var count int64
	if err := tx.Model(&models.PaymentToken{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count payment tokens: %w", err)
	}
	if count >= int64(s.cfg.Registry.MaxPaymentTokens) {
		return ErrTooManyPayments
	}

	if err := tx.Create(&models.PaymentToken{Token: token}).Error; err != nil {
		return fmt.Errorf("failed to add payment token: %w", err)
	}
	return nil
}

// IsPayable reports whether the token is on the allow-list.
func (s *RegistryService) IsPayable(token models.Address) (bool, error) {
	if token.IsZero() {
		return false, nil
	}
	var count int64
	if err := s.db.Model(&models.PaymentToken{}).Where("token = ?", token).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check allow-list: %w", err)
	}
	return count > 0, nil
}

// ListPayments returns the current allow-list.
func (s *RegistryService) ListPayments() ([]models.Address, error) {
	var tokens []models.PaymentToken
	if err := s.db.Order("created_at ASC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment tokens: %w", err)
	}

	out := make([]models.Address, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Token)
	}
	return out, nil
}

// GetIssuer resolves a class key to its issuer address, or the zero address
// when no class exists for the key.
func (s *RegistryService) GetIssuer(name, symbol string, capacity uint64) (models.Address, error) {
	var class models.AgentClass
	err := s.db.Where("name = ? AND symbol = ? AND capacity = ?", name, symbol, capacity).First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ZeroAddress, nil
	}
	if err != nil {
		return models.ZeroAddress, fmt.Errorf("failed to resolve issuer: %w", err)
	}
	return class.Address, nil
}

// GetClass loads a class by issuer address.
func (s *RegistryService) GetClass(address models.Address) (*models.AgentClass, error) {
	var class models.AgentClass
	err := s.db.Where("address = ?", address).First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	return &class, nil
}

// ListClasses returns registered classes, newest first.
func (s *RegistryService) ListClasses(params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.AgentClass{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}

	var classes []models.AgentClass
	query = utils.ApplySort(query, params, []string{"created_at", "name", "capacity", "mint_price"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	result := utils.CreatePaginationResult(classes, total, params)
	return &result, nil
}

// State returns the registry singleton.
func (s *RegistryService) State() (*models.RegistryState, error) {
	return s.loadState(s.db)
}

// Authority returns the issuer authority (the custody ledger identity)
// recorded at initialization.
func (s *RegistryService) Authority() (models.Address, error) {
	state, err := s.loadState(s.db)
	if err != nil {
		return models.ZeroAddress, err
	}
	return state.Authority, nil
}
