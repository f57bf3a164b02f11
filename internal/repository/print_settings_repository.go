package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-service/internal/models"
)

// PrintSettingsRepository handles print settings data persistence
type PrintSettingsRepository struct {
	db *gorm.DB
}

// NewPrintSettingsRepository creates a new print settings repository
func NewPrintSettingsRepository(db *gorm.DB) *PrintSettingsRepository {
	return &PrintSettingsRepository{db: db}
}

// GetByTenantID retrieves print settings for a tenant
func (r *PrintSettingsRepository) GetByTenantID(tenantID string) (*models.PrintSettings, error) {
	var settings models.PrintSettings
	err := r.db.Where("tenant_id = ?", tenantID).First(&settings).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get print settings: %w", err)
	}
	return &settings, nil
}

// Create creates new print settings for a tenant
func (r *PrintSettingsRepository) Create(settings *models.PrintSettings) error {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	if err := r.db.Create(settings).Error; err != nil {
		return fmt.Errorf("failed to create print settings: %w", err)
	}
	return nil
}

// Update updates existing print settings
func (r *PrintSettingsRepository) Update(settings *models.PrintSettings) error {
	if err := r.db.Save(settings).Error; err != nil {
		return fmt.Errorf("failed to update print settings: %w", err)
	}
	return nil
}

// Delete soft-deletes print settings for a tenant
func (r *PrintSettingsRepository) Delete(tenantID string) error {
	if err := r.db.Where("tenant_id = ?", tenantID).Delete(&models.PrintSettings{}).Error; err != nil {
		return fmt.Errorf("failed to delete print settings: %w", err)
	}
	return nil
}
