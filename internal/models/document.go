package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceDocument records a generated invoice document. The PDF bytes
// themselves are cached by short code; a cache miss re-renders from the
// source invoice, so the record only carries integrity metadata.
type InvoiceDocument struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_invoice_docs_tenant"`
	InvoiceID uuid.UUID `json:"invoiceId" gorm:"type:uuid;not null;index:idx_invoice_docs_invoice"`

	InvoiceNumber string   `json:"invoiceNumber" gorm:"type:varchar(50);not null;index:idx_invoice_docs_number"`
	PageSize      PageSize `json:"pageSize" gorm:"type:varchar(10);default:'letter'"`

	FileSize        int64  `json:"fileSize" gorm:"default:0"`
	ContentChecksum string `json:"contentChecksum,omitempty" gorm:"type:varchar(64)"`

	// Short code acts as a download capability token
	ShortCode   string     `json:"shortCode" gorm:"type:varchar(20);uniqueIndex:idx_invoice_docs_short_code"`
	ShortURL    string     `json:"shortUrl,omitempty" gorm:"type:varchar(255)"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	AccessCount int        `json:"accessCount" gorm:"default:0"`
	LastAccess  *time.Time `json:"lastAccess,omitempty"`

	GeneratedBy string  `json:"generatedBy,omitempty" gorm:"type:varchar(255)"`
	Total       float64 `json:"total" gorm:"type:decimal(10,2)"`
	Currency    string  `json:"currency" gorm:"type:varchar(3);default:'USD'"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for InvoiceDocument
func (InvoiceDocument) TableName() string {
	return "invoice_documents"
}
