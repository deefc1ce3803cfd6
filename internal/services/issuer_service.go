// internal/services/issuer_service.go
package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/utils"
)

// IssuerService mints licenses for agent classes and owns their mutable
// trait state. Issuance is payment-gated: the caller supplies a mint
// callback which must move at least the mint price into the class account,
// and the service verifies the payment by balance delta rather than trusting
// the callback's word.
type IssuerService struct {
	db       *gorm.DB
	registry *RegistryService
	bank     *TokenService
	events   *EventService
	logger   *logrus.Logger

	// Per-class issuance locks. A mint callback that re-enters Issue for
	// the same class fails ErrReentrantCall instead of interleaving.
	mu    sync.Mutex
	locks map[models.Address]*sync.Mutex
}

func NewIssuerService(db *gorm.DB, registry *RegistryService, bank *TokenService, events *EventService, logger *logrus.Logger) *IssuerService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IssuerService{
		db:       db,
		registry: registry,
		bank:     bank,
		events:   events,
		logger:   logger,
		locks:    make(map[models.Address]*sync.Mutex),
	}
}

func (s *IssuerService) classLock(classID models.Address) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[classID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[classID] = lock
	}
	return lock
}

func (s *IssuerService) loadClass(db *gorm.DB, classID models.Address) (*models.AgentClass, error) {
	var class models.AgentClass
	err := db.Where("address = ?", classID).First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	return &class, nil
}

func (s *IssuerService) isPayable(db *gorm.DB, token models.Address) (bool, error) {
	var count int64
	if err := db.Model(&models.PaymentToken{}).Where("token = ?", token).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check allow-list: %w", err)
	}
	return count > 0, nil
}

// Issue mints the next license of a class to the recipient. The license id
// is assigned and the counter persisted before the mint callback runs, so a
// reentrant attempt can never observe or be assigned the same id; it fails
// on the class lock instead.
func (s *IssuerService) Issue(classID, to, paymentToken models.Address, cb MintCallback, data []byte) (uint64, error) {
	if to.IsZero() {
		return 0, ErrZeroRecipient
	}
	if paymentToken.IsZero() {
		return 0, ErrZeroToken
	}
	if cb == nil {
		return 0, ErrInvalidArgument
	}

	lock := s.classLock(classID)
	if !lock.TryLock() {
		return 0, ErrReentrantCall
	}
	defer lock.Unlock()

	var licenseID uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		class, err := s.loadClass(tx, classID)
		if err != nil {
			return err
		}

		payable, err := s.isPayable(tx, paymentToken)
		if err != nil {
			return err
		}
		if !payable {
			return ErrNotPayable
		}

		if class.NextID > class.Capacity {
			return ErrCapacityExceeded
		}

		// Assign the id and persist the counter before any external code.
		licenseID = class.NextID
		class.NextID++
		if err := tx.Model(&models.AgentClass{}).Where("address = ?", classID).
			Update("next_id", class.NextID).Error; err != nil {
			return fmt.Errorf("failed to advance issuance counter: %w", err)
		}

		before, err := s.bank.BalanceOf(tx, paymentToken, classID)
		if err != nil {
			return err
		}

		if err := cb.OnMint(tx, paymentToken, data); err != nil {
			return fmt.Errorf("mint callback failed: %w", err)
		}

		after, err := s.bank.BalanceOf(tx, paymentToken, classID)
		if err != nil {
			return err
		}
		if after < before || after-before < class.MintPrice {
			return ErrInsufficientPayment
		}

		license := models.License{
			ClassID:   classID,
			LicenseID: licenseID,
			Owner:     to,
			Status:    models.LicenseStatusInactive,
		}
		if err := tx.Create(&license).Error; err != nil {
			return fmt.Errorf("failed to create license: %w", err)
		}

		return s.events.Emit(tx, models.EventLicenseIssued, classID, models.JSONB{
			"license_id": licenseID,
			"to":         to,
			"paid":       after - before,
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"class":   classID,
		"license": licenseID,
		"to":      to,
	}).Info("license issued")

	return licenseID, nil
}

// UpdateTraits overwrites a license's trait record. Only the registry's
// issuer authority (the custody ledger) may call it.
func (s *IssuerService) UpdateTraits(caller, classID models.Address, licenseID uint64, traits models.Traits) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.updateTraitsTx(tx, caller, classID, licenseID, traits)
	})
}

// updateTraitsTx is the transaction-shared body of UpdateTraits, also called
// by the custody ledger from inside its own deploy/stop transaction.
func (s *IssuerService) updateTraitsTx(tx *gorm.DB, caller, classID models.Address, licenseID uint64, traits models.Traits) error {
	var state models.RegistryState
	err := tx.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("failed to load registry state: %w", err)
	}
	if caller != state.Authority {
		return ErrNotOperator
	}

	class, err := s.loadClass(tx, classID)
	if err != nil {
		return err
	}
	if licenseID == 0 || licenseID >= class.NextID {
		return ErrNoSuchLicense
	}

	var license models.License
	if err := tx.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&license).Error; err != nil {
		return ErrNoSuchLicense
	}

	license.SetTraits(traits)
	if err := tx.Save(&license).Error; err != nil {
		return fmt.Errorf("failed to update traits: %w", err)
	}

	return s.events.Emit(tx, models.EventTraitsChanged, classID, models.JSONB{
		"license_id":  licenseID,
		"deployments": traits.Deployments,
		"yield":       traits.Yield,
		"status":      traits.Status.String(),
	})
}

// UpdateBaseLocator replaces the metadata base locator. Owner-only. If any
// license exists the batch metadata-changed event covers [1, nextId-1].
func (s *IssuerService) UpdateBaseLocator(caller, classID models.Address, newLocator string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		class, err := s.loadClass(tx, classID)
		if err != nil {
			return err
		}
		if caller != class.Owner {
			return ErrNotOwner
		}

		if err := tx.Model(&models.AgentClass{}).Where("address = ?", classID).
			Update("base_locator", newLocator).Error; err != nil {
			return fmt.Errorf("failed to update base locator: %w", err)
		}

		if class.NextID > 1 {
			return s.events.Emit(tx, models.EventBatchTraitsChanged, classID, models.JSONB{
				"from_license_id": 1,
				"to_license_id":   class.NextID - 1,
			})
		}
		return nil
	})
}

// Withdraw moves accumulated mint revenue out of the class account.
// Owner-only, and only for tokens on the registry allow-list.
func (s *IssuerService) Withdraw(caller, classID, token, to models.Address, amount uint64) error {
	if token.IsZero() {
		return ErrZeroToken
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		class, err := s.loadClass(tx, classID)
		if err != nil {
			return err
		}
		if caller != class.Owner {
			return ErrNotOwner
		}

		payable, err := s.isPayable(tx, token)
		if err != nil {
			return err
		}
		if !payable {
			return ErrNotPayable
		}

		balance, err := s.bank.BalanceOf(tx, token, classID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance
		}

		if err := s.bank.Transfer(tx, token, classID, to, amount); err != nil {
			return err
		}

		return s.events.Emit(tx, models.EventFeesWithdrawn, classID, models.JSONB{
			"token":  token,
			"to":     to,
			"amount": amount,
		})
	})
}

// TransferClassOwnership hands the class to a new owner.
func (s *IssuerService) TransferClassOwnership(caller, classID, newOwner models.Address) error {
	if newOwner.IsZero() {
		return ErrZeroOwner
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		class, err := s.loadClass(tx, classID)
		if err != nil {
			return err
		}
		if caller != class.Owner {
			return ErrNotOwner
		}
		return tx.Model(&models.AgentClass{}).Where("address = ?", classID).
			Update("owner", newOwner).Error
	})
}

// Transfer moves title to a license between accounts. Used by the custody
// ledger and by operator callbacks delivering a license into escrow.
func (s *IssuerService) Transfer(tx *gorm.DB, classID models.Address, licenseID uint64, from, to models.Address) error {
	if to.IsZero() {
		return ErrZeroRecipient
	}
	if tx == nil {
		tx = s.db
	}

	var license models.License
	err := tx.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoSuchLicense
	}
	if err != nil {
		return fmt.Errorf("failed to load license: %w", err)
	}
	if license.Owner != from {
		return ErrNotOwner
	}

	license.Owner = to
	if err := tx.Save(&license).Error; err != nil {
		return fmt.Errorf("failed to transfer license: %w", err)
	}
	return nil
}

// OwnerOf returns the current title holder of a license.
func (s *IssuerService) OwnerOf(tx *gorm.DB, classID models.Address, licenseID uint64) (models.Address, error) {
	if tx == nil {
		tx = s.db
	}
	var license models.License
	err := tx.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ZeroAddress, ErrNoSuchLicense
	}
	if err != nil {
		return models.ZeroAddress, fmt.Errorf("failed to load license: %w", err)
	}
	return license.Owner, nil
}

// HeldCount counts how many licenses of a class an account currently holds.
func (s *IssuerService) HeldCount(tx *gorm.DB, classID, holder models.Address) (int64, error) {
	if tx == nil {
		tx = s.db
	}
	var count int64
	err := tx.Model(&models.License{}).
		Where("class_id = ? AND owner = ?", classID, holder).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count held licenses: %w", err)
	}
	return count, nil
}

// RenderMetadata composes the metadata document for a license.
func (s *IssuerService) RenderMetadata(classID models.Address, licenseID uint64) (*models.Metadata, error) {
	class, err := s.loadClass(s.db, classID)
	if err != nil {
		return nil, err
	}
	if licenseID == 0 || licenseID >= class.NextID {
		return nil, ErrNoSuchLicense
	}

	var license models.License
	if err := s.db.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&license).Error; err != nil {
		return nil, ErrNoSuchLicense
	}

	doc := models.RenderMetadata(class, licenseID, license.Traits())
	return &doc, nil
}

// BalanceOf returns the class account's balance of an allow-listed token.
func (s *IssuerService) BalanceOf(classID, token models.Address) (uint64, error) {
	if token.IsZero() {
		return 0, ErrZeroToken
	}
	payable, err := s.isPayable(s.db, token)
	if err != nil {
		return 0, err
	}
	if !payable {
		return 0, ErrNotPayable
	}
	return s.bank.BalanceOf(nil, token, classID)
}

// GetLicense loads one license row.
func (s *IssuerService) GetLicense(classID models.Address, licenseID uint64) (*models.License, error) {
	var license models.License
	err := s.db.Where("class_id = ? AND license_id = ?", classID, licenseID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSuchLicense
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	return &license, nil
}

// ListLicenses returns a class's issued licenses, newest first.
func (s *IssuerService) ListLicenses(classID models.Address, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.License{}).Where("class_id = ?", classID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	var licenses []models.License
	query = utils.ApplySort(query, params, []string{"created_at", "license_id", "status"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}

	result := utils.CreatePaginationResult(licenses, total, params)
	return &result, nil
}
