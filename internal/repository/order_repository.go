package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-service/internal/models"
)

// OrderRepository provides read access to the orders an invoice links to.
// Orders are owned by the orders system; this service only ever reads them.
type OrderRepository interface {
	GetByID(id uuid.UUID, tenantID string) (*models.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new read-only order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// GetByID retrieves an order with its cart items in display order
func (r *orderRepository) GetByID(id uuid.UUID, tenantID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).
		Preload("CartItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}
