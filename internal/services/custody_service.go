// internal/services/custody_service.go
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/utils"
)

// CustodyService runs the fee-bearing escrow protocol. Deploy takes a
// license into ledger custody, Stop returns it. Both snapshot observable
// state, invoke the operator-supplied callback, and verify delivery and fee
// payment by ownership and balance deltas afterwards. Either check failing
// rolls the whole operation back, so a short payment or a non-delivered
// license leaves no trace.
type CustodyService struct {
	db       *gorm.DB
	registry *RegistryService
	issuer   *IssuerService
	bank     *TokenService
	events   *EventService
	logger   *logrus.Logger

	// Instance-scoped escrow lock held across the callback. A callback that
	// re-enters Deploy or Stop fails ErrReentrantCall.
	lock sync.Mutex
}

func NewCustodyService(db *gorm.DB, registry *RegistryService, issuer *IssuerService, bank *TokenService, events *EventService, logger *logrus.Logger) *CustodyService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CustodyService{
		db:       db,
		registry: registry,
		issuer:   issuer,
		bank:     bank,
		events:   events,
		logger:   logger,
	}
}

// Initialize creates the ledger singleton bound to a registry.
func (s *CustodyService) Initialize(owner, registryAddress models.Address, fee uint64) (*models.LedgerState, error) {
	if owner.IsZero() {
		return nil, ErrZeroOwner
	}
	if registryAddress.IsZero() {
		return nil, ErrInvalidArgument
	}

	var state *models.LedgerState
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.LedgerState{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check ledger state: %w", err)
		}
		if count > 0 {
			return ErrAlreadyInitialized
		}

		state = &models.LedgerState{
			Address:  utils.DeriveAddress("custody-ledger", registryAddress.String()),
			Owner:    owner,
			Registry: registryAddress,
			Fee:      fee,
		}
		if err := tx.Create(state).Error; err != nil {
			return fmt.Errorf("failed to create ledger state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.registry.Bind(registryAddress)

	s.logger.WithFields(logrus.Fields{
		"ledger":   state.Address,
		"registry": registryAddress,
		"fee":      fee,
	}).Info("custody ledger initialized")

	return state, nil
}

func (s *CustodyService) loadState(db *gorm.DB) (*models.LedgerState, error) {
	var state models.LedgerState
	err := db.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	return &state, nil
}

// guard refuses to operate against a registry other than the one the ledger
// was initialized with.
func (s *CustodyService) guard(db *gorm.DB, state *models.LedgerState) error {
	var registry models.RegistryState
	err := db.First(&registry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("failed to load registry state: %w", err)
	}
	if registry.Address != state.Registry {
		return ErrForeignContext
	}
	return nil
}

func (s *CustodyService) resolveClass(db *gorm.DB, key models.ClassKey) (*models.AgentClass, error) {
	var class models.AgentClass
	err := db.Where("name = ? AND symbol = ? AND capacity = ?", key.Name, key.Symbol, key.Capacity).First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer: %w", err)
	}
	return &class, nil
}

// Deploy escrows a license. The callback must deliver the license into the
// ledger's custody and, when a fee is configured, pay at least that much of
// the payment token. Both are verified by delta after the callback returns.
func (s *CustodyService) Deploy(claimant, paymentToken models.Address, licenseID uint64, data []byte, cb DeployCallback) error {
	if claimant.IsZero() || paymentToken.IsZero() || licenseID == 0 || len(data) == 0 {
		return ErrInvalidArgument
	}
	if cb == nil {
		return ErrInvalidArgument
	}

	if !s.lock.TryLock() {
		return ErrReentrantCall
	}
	defer s.lock.Unlock()

	var feePaid uint64
	var classAddr models.Address

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if err := s.guard(tx, state); err != nil {
			return err
		}

		payload, err := DecodeDeployData(data)
		if err != nil {
			return err
		}

		class, err := s.resolveClass(tx, payload.Class)
		if err != nil {
			return err
		}
		classAddr = class.Address

		var existing models.DeployRecord
		err = tx.Where("class_id = ? AND license_id = ?", class.Address, licenseID).First(&existing).Error
		if err == nil {
			return ErrAlreadyDeployed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check deploy record: %w", err)
		}

		heldBefore, err := s.issuer.HeldCount(tx, class.Address, state.Address)
		if err != nil {
			return err
		}
		balanceBefore, err := s.bank.BalanceOf(tx, paymentToken, state.Address)
		if err != nil {
			return err
		}

		if err := cb.OnDeploy(tx, claimant, paymentToken, licenseID, data); err != nil {
			return fmt.Errorf("deploy callback failed: %w", err)
		}

		owner, err := s.issuer.OwnerOf(tx, class.Address, licenseID)
		if err != nil || owner != state.Address {
			return ErrNotReceived
		}
		heldAfter, err := s.issuer.HeldCount(tx, class.Address, state.Address)
		if err != nil {
			return err
		}
		if heldAfter != heldBefore+1 {
			return ErrNotReceived
		}

		balanceAfter, err := s.bank.BalanceOf(tx, paymentToken, state.Address)
		if err != nil {
			return err
		}
		if state.Fee > 0 && (balanceAfter < balanceBefore || balanceAfter-balanceBefore < state.Fee) {
			return ErrInsufficientFee
		}
		// Balance may have shrunk when no fee is due; never journal a
		// wrapped delta.
		if balanceAfter > balanceBefore {
			feePaid = balanceAfter - balanceBefore
		}

		record := models.DeployRecord{
			ClassID:    class.Address,
			LicenseID:  licenseID,
			Claimant:   claimant,
			DeployedAt: time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create deploy record: %w", err)
		}

		if err := s.issuer.updateTraitsTx(tx, state.Address, class.Address, licenseID, payload.Traits); err != nil {
			return err
		}

		return s.events.Emit(tx, models.EventLicenseDeployed, class.Address, models.JSONB{
			"license_id": licenseID,
			"claimant":   claimant,
			"fee_paid":   feePaid,
		})
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"class":    classAddr,
		"license":  licenseID,
		"claimant": claimant,
		"fee":      feePaid,
	}).Info("license deployed")

	return nil
}

// Stop releases an escrowed license back to its claimant. The deploy record
// is deleted before the callback runs, so a reentrant Stop observes
// NotDeployed rather than racing the release.
func (s *CustodyService) Stop(claimant, paymentToken models.Address, licenseID uint64, data []byte, cb StopCallback) error {
	if claimant.IsZero() || paymentToken.IsZero() || licenseID == 0 || len(data) == 0 {
		return ErrInvalidArgument
	}
	if cb == nil {
		return ErrInvalidArgument
	}

	if !s.lock.TryLock() {
		return ErrReentrantCall
	}
	defer s.lock.Unlock()

	var feePaid uint64
	var classAddr models.Address

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if err := s.guard(tx, state); err != nil {
			return err
		}

		payload, err := DecodeDeployData(data)
		if err != nil {
			return err
		}

		class, err := s.resolveClass(tx, payload.Class)
		if err != nil {
			return err
		}
		classAddr = class.Address

		var record models.DeployRecord
		err = tx.Where("class_id = ? AND license_id = ?", class.Address, licenseID).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotDeployed
		}
		if err != nil {
			return fmt.Errorf("failed to load deploy record: %w", err)
		}
		if record.Claimant != claimant {
			return ErrNotOwner
		}

		owner, err := s.issuer.OwnerOf(tx, class.Address, licenseID)
		if err != nil || owner != state.Address {
			return ErrNotReceived
		}

		// Clear escrow state before the callback so a reentrant stop sees
		// NotDeployed.
		if err := tx.Unscoped().Delete(&record).Error; err != nil {
			return fmt.Errorf("failed to delete deploy record: %w", err)
		}

		if err := s.issuer.updateTraitsTx(tx, state.Address, class.Address, licenseID, payload.Traits); err != nil {
			return err
		}

		heldBefore, err := s.issuer.HeldCount(tx, class.Address, state.Address)
		if err != nil {
			return err
		}
		balanceBefore, err := s.bank.BalanceOf(tx, paymentToken, state.Address)
		if err != nil {
			return err
		}

		if err := cb.OnStop(tx, claimant, paymentToken, licenseID, data); err != nil {
			return fmt.Errorf("stop callback failed: %w", err)
		}

		balanceAfter, err := s.bank.BalanceOf(tx, paymentToken, state.Address)
		if err != nil {
			return err
		}
		if state.Fee > 0 && (balanceAfter < balanceBefore || balanceAfter-balanceBefore < state.Fee) {
			return ErrInsufficientFee
		}
		if balanceAfter > balanceBefore {
			feePaid = balanceAfter - balanceBefore
		}

		if err := s.issuer.Transfer(tx, class.Address, licenseID, state.Address, claimant); err != nil {
			return err
		}

		heldAfter, err := s.issuer.HeldCount(tx, class.Address, state.Address)
		if err != nil {
			return err
		}
		if heldAfter != heldBefore-1 {
			return ErrNotTransferred
		}

		return s.events.Emit(tx, models.EventLicenseStopped, class.Address, models.JSONB{
			"license_id": licenseID,
			"claimant":   claimant,
			"fee_paid":   feePaid,
		})
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"class":    classAddr,
		"license":  licenseID,
		"claimant": claimant,
		"fee":      feePaid,
	}).Info("license stopped")

	return nil
}

// SetFee updates the escrow fee. Owner-only.
func (s *CustodyService) SetFee(caller models.Address, newFee uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if caller != state.Owner {
			return ErrNotOwner
		}

		if err := tx.Model(&models.LedgerState{}).Where("address = ?", state.Address).
			Update("fee", newFee).Error; err != nil {
			return fmt.Errorf("failed to update fee: %w", err)
		}

		return s.events.Emit(tx, models.EventFeeUpdated, "", models.JSONB{
			"fee": newFee,
		})
	})
}

// WithdrawFees moves collected fees out of the ledger account. Owner-only,
// allow-listed tokens only.
func (s *CustodyService) WithdrawFees(caller, token, to models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.loadState(tx)
		if err != nil {
			return err
		}
		if caller != state.Owner {
			return ErrNotOwner
		}

		var count int64
		if err := tx.Model(&models.PaymentToken{}).Where("token = ?", token).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check allow-list: %w", err)
		}
		if count == 0 {
			return ErrNotPayable
		}

		balance, err := s.bank.BalanceOf(tx, token, state.Address)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance
		}

		if err := s.bank.Transfer(tx, token, state.Address, to, amount); err != nil {
			return err
		}

		return s.events.Emit(tx, models.EventFeesWithdrawn, "", models.JSONB{
			"token":  token,
			"to":     to,
			"amount": amount,
		})
	})
}

// GetDeployInfo returns the escrow record for (issuer, licenseId), or nil
// when the license is not deployed.
func (s *CustodyService) GetDeployInfo(classID models.Address, licenseID uint64) (*models.DeployRecord, error) {
	var record models.DeployRecord
	err := s.db.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deploy record: %w", err)
	}
	return &record, nil
}

// GetClaimantLicenses lists the license ids a claimant currently has in
// escrow for one class.
func (s *CustodyService) GetClaimantLicenses(claimant, classID models.Address) ([]uint64, error) {
	var records []models.DeployRecord
	err := s.db.Where("claimant = ? AND class_id = ?", claimant, classID).
		Order("license_id ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list claimant licenses: %w", err)
	}

	ids := make([]uint64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.LicenseID)
	}
	return ids, nil
}

// BalanceOf returns the ledger's balance of an allow-listed token.
func (s *CustodyService) BalanceOf(token models.Address) (uint64, error) {
	if token.IsZero() {
		return 0, ErrZeroToken
	}

	var count int64
	if err := s.db.Model(&models.PaymentToken{}).Where("token = ?", token).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to check allow-list: %w", err)
	}
	if count == 0 {
		return 0, ErrNotPayable
	}

	state, err := s.loadState(s.db)
	if err != nil {
		return 0, err
	}
	return s.bank.BalanceOf(nil, token, state.Address)
}

// HeldCount returns how many licenses of a class the ledger currently holds.
func (s *CustodyService) HeldCount(classID models.Address) (int64, error) {
	state, err := s.loadState(s.db)
	if err != nil {
		return 0, err
	}
	return s.issuer.HeldCount(nil, classID, state.Address)
}

// State returns the ledger singleton.
func (s *CustodyService) State() (*models.LedgerState, error) {
	return s.loadState(s.db)
}

// ListDeployments returns active escrow records, newest first.
func (s *CustodyService) ListDeployments(params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.DeployRecord{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count deployments: %w", err)
	}

	var records []models.DeployRecord
	query = utils.ApplySort(query, params, []string{"created_at", "deployed_at", "license_id"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	result := utils.CreatePaginationResult(records, total, params)
	return &result, nil
}
