package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"invoice-service/internal/models"
)

// Cache TTL constants for invoices
const (
	InvoiceCacheTTL       = 10 * time.Minute // Invoice reads - frequently accessed
	InvoiceNumberCacheTTL = 10 * time.Minute // Invoice lookups by number
)

// InvoiceFilters represents filters for querying invoices
type InvoiceFilters struct {
	TenantID string
	OrderID  *uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

// InvoiceRepository defines the interface for invoice data operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uuid.UUID, tenantID string) (*models.Invoice, error)
	GetByInvoiceNumber(invoiceNumber string, tenantID string) (*models.Invoice, error)
	List(filters InvoiceFilters) ([]models.Invoice, int64, error)
	Update(invoice *models.Invoice) error
	Delete(id uuid.UUID, tenantID string) error
	RedisHealth(ctx context.Context) error
}

type invoiceRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewInvoiceRepository creates a new invoice repository with optional Redis caching
func NewInvoiceRepository(db *gorm.DB, redisClient *redis.Client) InvoiceRepository {
	return &invoiceRepository{db: db, redis: redisClient}
}

// generateInvoiceCacheKey creates a cache key for invoice lookups by ID
func generateInvoiceCacheKey(tenantID string, invoiceID uuid.UUID) string {
	return fmt.Sprintf("invoice:%s:%s", tenantID, invoiceID.String())
}

// generateInvoiceNumberCacheKey creates a cache key for invoice lookups by number
func generateInvoiceNumberCacheKey(tenantID string, invoiceNumber string) string {
	return fmt.Sprintf("invoice:number:%s:%s", tenantID, invoiceNumber)
}

// invalidateInvoiceCaches invalidates all caches related to an invoice
func (r *invoiceRepository) invalidateInvoiceCaches(tenantID string, invoiceID uuid.UUID, invoiceNumber string) {
	if r.redis == nil {
		return
	}
	ctx := context.Background()
	keys := []string{generateInvoiceCacheKey(tenantID, invoiceID)}
	if invoiceNumber != "" {
		keys = append(keys, generateInvoiceNumberCacheKey(tenantID, invoiceNumber))
	}
	_ = r.redis.Del(ctx, keys...).Err()
}

// cacheGet attempts to read a cached invoice; cache problems are treated as
// misses so Redis outages never break reads
func (r *invoiceRepository) cacheGet(key string) *models.Invoice {
	if r.redis == nil {
		return nil
	}
	data, err := r.redis.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil
	}
	var invoice models.Invoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil
	}
	return &invoice
}

func (r *invoiceRepository) cacheSet(key string, invoice *models.Invoice, ttl time.Duration) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(invoice)
	if err != nil {
		return
	}
	_ = r.redis.Set(context.Background(), key, data, ttl).Err()
}

// RedisHealth returns the health status of the Redis connection
func (r *invoiceRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// Create creates a new invoice with its line items
func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	for i := range invoice.LineItems {
		invoice.LineItems[i].Position = i
	}
	if err := r.db.Create(invoice).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice with its line items in display order
func (r *invoiceRepository) GetByID(id uuid.UUID, tenantID string) (*models.Invoice, error) {
	cacheKey := generateInvoiceCacheKey(tenantID, id)
	if cached := r.cacheGet(cacheKey); cached != nil {
		return cached, nil
	}

	var invoice models.Invoice
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	r.cacheSet(cacheKey, &invoice, InvoiceCacheTTL)
	return &invoice, nil
}

// GetByInvoiceNumber retrieves an invoice by its number
func (r *invoiceRepository) GetByInvoiceNumber(invoiceNumber string, tenantID string) (*models.Invoice, error) {
	cacheKey := generateInvoiceNumberCacheKey(tenantID, invoiceNumber)
	if cached := r.cacheGet(cacheKey); cached != nil {
		return cached, nil
	}

	var invoice models.Invoice
	err := r.db.Where("invoice_number = ? AND tenant_id = ?", invoiceNumber, tenantID).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice by number: %w", err)
	}

	r.cacheSet(cacheKey, &invoice, InvoiceNumberCacheTTL)
	return &invoice, nil
}

// List retrieves invoices matching the filters with pagination
func (r *invoiceRepository) List(filters InvoiceFilters) ([]models.Invoice, int64, error) {
	query := r.db.Model(&models.Invoice{}).Where("tenant_id = ?", filters.TenantID)

	if filters.OrderID != nil {
		query = query.Where("order_id = ?", *filters.OrderID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var invoices []models.Invoice
	err := query.
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	return invoices, total, nil
}

// Update updates an invoice and invalidates its caches
func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	if err := r.db.Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	r.invalidateInvoiceCaches(invoice.TenantID, invoice.ID, invoice.InvoiceNumber)
	return nil
}

// Delete soft-deletes an invoice
func (r *invoiceRepository) Delete(id uuid.UUID, tenantID string) error {
	var invoice models.Invoice
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return fmt.Errorf("failed to get invoice for delete: %w", err)
	}

	if err := r.db.Delete(&invoice).Error; err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	r.invalidateInvoiceCaches(tenantID, id, invoice.InvoiceNumber)
	return nil
}
