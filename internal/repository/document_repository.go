package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"invoice-service/internal/models"
)

// DocumentBytesCacheTTL bounds how long rendered PDF bytes stay in Redis.
// A miss is never an error: the document re-renders from the source invoice.
const DocumentBytesCacheTTL = 24 * time.Hour

// DocumentRepository handles invoice document records and the Redis-backed
// rendered-bytes cache keyed by short code
type DocumentRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewDocumentRepository creates a new document repository with optional
// Redis byte caching
func NewDocumentRepository(db *gorm.DB, redisClient *redis.Client) *DocumentRepository {
	return &DocumentRepository{db: db, redis: redisClient}
}

// Create creates a new invoice document record.
// Retries short code generation on unique constraint collision (up to 3 attempts).
func (r *DocumentRepository) Create(doc *models.InvoiceDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if doc.ShortCode == "" || attempt > 0 {
			shortCode, err := generateShortCode()
			if err != nil {
				return fmt.Errorf("failed to generate short code: %w", err)
			}
			doc.ShortCode = shortCode
		}

		err := r.db.Create(doc).Error
		if err == nil {
			return nil
		}

		if attempt < maxRetries-1 && isUniqueViolation(err, "short_code") {
			continue // Retry with a new short code
		}
		return fmt.Errorf("failed to create invoice document: %w", err)
	}
	return fmt.Errorf("failed to create invoice document: exhausted short code generation retries")
}

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// PostgreSQL unique violation error code 23505
	return (strings.Contains(errStr, "23505") || strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "unique constraint")) &&
		strings.Contains(errStr, column)
}

// GetByID retrieves an invoice document by ID
func (r *DocumentRepository) GetByID(id uuid.UUID, tenantID string) (*models.InvoiceDocument, error) {
	var doc models.InvoiceDocument
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice document: %w", err)
	}
	return &doc, nil
}

// GetByShortCode retrieves an invoice document by its short code.
// This is used for the public download endpoint, so there is no tenant scope.
func (r *DocumentRepository) GetByShortCode(shortCode string) (*models.InvoiceDocument, error) {
	var doc models.InvoiceDocument
	err := r.db.Where("short_code = ?", shortCode).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice document by short code: %w", err)
	}
	return &doc, nil
}

// GetLatestByInvoiceID retrieves the most recent document for an invoice
func (r *DocumentRepository) GetLatestByInvoiceID(invoiceID uuid.UUID, tenantID string) (*models.InvoiceDocument, error) {
	var doc models.InvoiceDocument
	err := r.db.Where("invoice_id = ? AND tenant_id = ?", invoiceID, tenantID).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest invoice document: %w", err)
	}
	return &doc, nil
}

// Update updates an invoice document record
func (r *DocumentRepository) Update(doc *models.InvoiceDocument) error {
	if err := r.db.Save(doc).Error; err != nil {
		return fmt.Errorf("failed to update invoice document: %w", err)
	}
	return nil
}

// IncrementAccessCount increments the access count and updates last access time.
// This is used to track downloads for audit purposes.
func (r *DocumentRepository) IncrementAccessCount(id uuid.UUID) error {
	now := time.Now()
	err := r.db.Model(&models.InvoiceDocument{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_count": gorm.Expr("access_count + 1"),
			"last_access":  now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment access count: %w", err)
	}
	return nil
}

// ListByTenant lists invoice documents for a tenant with pagination
func (r *DocumentRepository) ListByTenant(tenantID string, page, limit int) ([]models.InvoiceDocument, int64, error) {
	var docs []models.InvoiceDocument
	var total int64

	if err := r.db.Model(&models.InvoiceDocument{}).Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoice documents: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoice documents: %w", err)
	}

	return docs, total, nil
}

// generateBytesCacheKey creates the Redis key for rendered document bytes
func generateBytesCacheKey(shortCode string) string {
	return fmt.Sprintf("invoice:document:bytes:%s", shortCode)
}

// StoreBytes caches the rendered PDF bytes under the document's short code.
// Caching failures are swallowed; the bytes can always be regenerated.
func (r *DocumentRepository) StoreBytes(ctx context.Context, shortCode string, data []byte) {
	if r.redis == nil || shortCode == "" {
		return
	}
	_ = r.redis.Set(ctx, generateBytesCacheKey(shortCode), data, DocumentBytesCacheTTL).Err()
}

// GetBytes returns the cached rendered bytes, or nil on any miss
func (r *DocumentRepository) GetBytes(ctx context.Context, shortCode string) []byte {
	if r.redis == nil || shortCode == "" {
		return nil
	}
	data, err := r.redis.Get(ctx, generateBytesCacheKey(shortCode)).Bytes()
	if err != nil {
		return nil
	}
	return data
}

// generateShortCode generates a URL-safe short code for document access.
// Uses crypto/rand for security.
func generateShortCode() (string, error) {
	// 9 random bytes = 12 base64 chars (72 bits of entropy)
	bytes := make([]byte, 9)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
