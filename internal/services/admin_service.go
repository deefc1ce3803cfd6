// internal/services/admin_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/models"
)

type AdminService struct {
	db *gorm.DB
}

type PlatformStats struct {
	TotalClasses     int64 `json:"total_classes"`
	TotalLicenses    int64 `json:"total_licenses"`
	ActiveDeploys    int64 `json:"active_deploys"`
	PaymentTokens    int64 `json:"payment_tokens"`
	TotalUsers       int64 `json:"total_users"`
	EventsLast24h    int64 `json:"events_last_24h"`
	DeployedLicenses int64 `json:"deployed_licenses"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

func (s *AdminService) GetPlatformStats() (*PlatformStats, error) {
	stats := &PlatformStats{}

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.AgentClass{}, &stats.TotalClasses},
		{&models.License{}, &stats.TotalLicenses},
		{&models.DeployRecord{}, &stats.ActiveDeploys},
		{&models.PaymentToken{}, &stats.PaymentTokens},
		{&models.User{}, &stats.TotalUsers},
	}
	for _, c := range counts {
		if err := s.db.Model(c.model).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	if err := s.db.Model(&models.LedgerEvent{}).
		Where("created_at > NOW() - INTERVAL '24 hours'").
		Count(&stats.EventsLast24h).Error; err != nil {
		// Interval syntax is postgres-only; fall back to a total count.
		s.db.Model(&models.LedgerEvent{}).Count(&stats.EventsLast24h)
	}

	if err := s.db.Model(&models.License{}).
		Where("status = ?", models.LicenseStatusDeployed).
		Count(&stats.DeployedLicenses).Error; err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}

	return stats, nil
}

// RecordAuditLog writes one admin action to the audit trail.
func (s *AdminService) RecordAuditLog(userID *uuid.UUID, action, resourceType, ipAddress, userAgent string, newValues models.JSONB) error {
	log := models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		NewValues:    newValues,
	}
	if err := s.db.Create(&log).Error; err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns recent audit entries.
func (s *AdminService) ListAuditLogs(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.AuditLog
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
