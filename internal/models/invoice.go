package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Metadata is a custom type for PostgreSQL JSONB fields holding arbitrary
// key/value pairs. Legacy imports store numeric aliases here (qty, amount,
// price, total) alongside free-form display attributes.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for Metadata
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return nil
	}
}

// DiscountType represents how an invoice-level discount is interpreted
type DiscountType string

const (
	DiscountTypeAmount  DiscountType = "amount"  // flat currency amount
	DiscountTypePercent DiscountType = "percent" // percentage of subtotal
)

// Address holds a postal address block embedded on the invoice
type Address struct {
	Name       string `json:"name,omitempty" gorm:"type:varchar(255)"`
	Company    string `json:"company,omitempty" gorm:"type:varchar(255)"`
	Street     string `json:"street,omitempty" gorm:"type:varchar(255)"`
	City       string `json:"city,omitempty" gorm:"type:varchar(100)"`
	State      string `json:"state,omitempty" gorm:"type:varchar(100)"`
	PostalCode string `json:"postalCode,omitempty" gorm:"type:varchar(20)"`
	Country    string `json:"country,omitempty" gorm:"type:varchar(100)"`
	Email      string `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone      string `json:"phone,omitempty" gorm:"type:varchar(50)"`
}

// IsEmpty reports whether no address field is populated
func (a Address) IsEmpty() bool {
	return a.Name == "" && a.Company == "" && a.Street == "" && a.City == "" &&
		a.State == "" && a.PostalCode == "" && a.Country == "" && a.Email == "" && a.Phone == ""
}

// Lines returns the populated display lines of the address in print order
func (a Address) Lines() []string {
	var lines []string
	for _, s := range []string{a.Name, a.Company, a.Street} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	locality := a.City
	if a.State != "" {
		if locality != "" {
			locality += ", "
		}
		locality += a.State
	}
	if a.PostalCode != "" {
		if locality != "" {
			locality += " "
		}
		locality += a.PostalCode
	}
	if locality != "" {
		lines = append(lines, locality)
	}
	for _, s := range []string{a.Country, a.Email, a.Phone} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// Invoice represents the main invoice entity
type Invoice struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string    `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_invoices_tenant_id;index:idx_invoices_tenant_number,unique"`
	InvoiceNumber string    `json:"invoiceNumber" gorm:"not null;index:idx_invoices_tenant_number,unique"`
	IssueDate     time.Time `json:"issueDate"`
	DueDate       *time.Time `json:"dueDate,omitempty"`

	// Optional link to the originating order (cart items are reconciled
	// against the invoice-authored line items at render time)
	OrderID *uuid.UUID `json:"orderId,omitempty" gorm:"type:uuid;index:idx_invoices_order"`

	BillTo Address `json:"billTo" gorm:"embedded;embeddedPrefix:bill_to_"`
	ShipTo Address `json:"shipTo" gorm:"embedded;embeddedPrefix:ship_to_"`

	// Invoice-level discount: percent of subtotal or flat amount
	DiscountType  DiscountType `json:"discountType,omitempty" gorm:"type:varchar(10)"`
	DiscountValue float64      `json:"discountValue" gorm:"type:decimal(10,2);default:0"`

	// Tax rate percentage applied to the post-discount base
	TaxRate float64 `json:"taxRate" gorm:"type:decimal(5,2);default:0"`

	// Explicit shipping amount; nil means fall through to the linked
	// order's shipping fields
	ShippingAmount  *float64 `json:"shippingAmount,omitempty" gorm:"type:decimal(10,2)"`
	ShippingCarrier string   `json:"shippingCarrier,omitempty" gorm:"type:varchar(100)"`
	TrackingNumber  string   `json:"trackingNumber,omitempty" gorm:"type:varchar(100)"`

	Notes string `json:"notes,omitempty" gorm:"type:text"`
	Terms string `json:"terms,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_invoices_tenant_created,sort:desc"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// LineItems order is display order; Position preserves insertion order
	LineItems []LineItem `json:"lineItems" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate hook to generate invoice number
func (i *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if i.InvoiceNumber == "" {
		i.InvoiceNumber = generateInvoiceNumber()
	}
	return
}

// generateInvoiceNumber creates a unique invoice number
func generateInvoiceNumber() string {
	return fmt.Sprintf("INV-%d", time.Now().Unix())
}

// LineItem represents an invoice-authored line item.
// Quantity/UnitPrice/LineTotal are pointers: nil means the author never set
// the field, which matters for reconciliation against cart items.
type LineItem struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InvoiceID uuid.UUID `json:"invoiceId" gorm:"type:uuid;not null;index:idx_line_items_invoice"`
	Position  int       `json:"position" gorm:"not null;default:0"`

	SKU         string `json:"sku,omitempty" gorm:"type:varchar(100)"`
	Description string `json:"description,omitempty" gorm:"type:varchar(500)"`

	Quantity  *float64 `json:"quantity,omitempty" gorm:"type:decimal(10,3)"`
	UnitPrice *float64 `json:"unitPrice,omitempty" gorm:"type:decimal(10,2)"`
	// LineTotal, when set, is authoritative over quantity * unitPrice
	LineTotal *float64 `json:"lineTotal,omitempty" gorm:"type:decimal(10,2)"`

	Options  pq.StringArray `json:"options,omitempty" gorm:"type:text[]"`
	Upgrades pq.StringArray `json:"upgrades,omitempty" gorm:"type:text[]"`

	Metadata Metadata `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for LineItem
func (LineItem) TableName() string {
	return "invoice_line_items"
}

// InvoiceUpdateRequest represents a request to update an invoice.
// Only non-nil fields are applied.
type InvoiceUpdateRequest struct {
	DueDate *time.Time `json:"dueDate,omitempty"`

	BillTo *Address `json:"billTo,omitempty"`
	ShipTo *Address `json:"shipTo,omitempty"`

	DiscountType  *DiscountType `json:"discountType,omitempty"`
	DiscountValue *float64      `json:"discountValue,omitempty"`
	TaxRate       *float64      `json:"taxRate,omitempty"`

	ShippingAmount  *float64 `json:"shippingAmount,omitempty"`
	ShippingCarrier *string  `json:"shippingCarrier,omitempty"`
	TrackingNumber  *string  `json:"trackingNumber,omitempty"`

	Notes *string `json:"notes,omitempty"`
	Terms *string `json:"terms,omitempty"`
}
