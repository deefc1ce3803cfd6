// internal/services/event_service.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
)

// EventService writes the append-only journal consumed by indexers. Emit is
// always called with the host operation's transaction so events commit and
// roll back together with the state change they describe.
type EventService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewEventService(db *gorm.DB, logger *logrus.Logger) *EventService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventService{db: db, logger: logger}
}

func (s *EventService) Emit(tx *gorm.DB, eventType string, classID models.Address, payload models.JSONB) error {
	if tx == nil {
		tx = s.db
	}

	event := models.LedgerEvent{
		Type:    eventType,
		ClassID: classID,
		Payload: payload,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}

	s.logger.WithFields(logrus.Fields{
		"event": eventType,
		"class": classID,
	}).Debug("ledger event recorded")

	return nil
}

// List returns recent events, optionally filtered by type and class.
func (s *EventService) List(eventType string, classID models.Address, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.Model(&models.LedgerEvent{})
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if !classID.IsZero() {
		query = query.Where("class_id = ?", classID)
	}

	var events []models.LedgerEvent
	if err := query.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
