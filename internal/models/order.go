package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Order is the originating order an invoice may link to. Only the fields the
// rendering pipeline reads are modeled here; order lifecycle management lives
// in the orders system.
type Order struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string    `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_orders_tenant_id"`
	OrderNumber string    `json:"orderNumber" gorm:"not null;index:idx_orders_number"`

	Currency string `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`

	// Shipping fields consumed by the totals coalesce: an explicit order
	// shipping cost takes precedence over the carrier's quoted service amount
	ShippingCost          *float64 `json:"shippingCost,omitempty" gorm:"type:decimal(10,2)"`
	SelectedServiceAmount *float64 `json:"selectedServiceAmount,omitempty" gorm:"type:decimal(10,2)"`
	ShippingCarrier       string   `json:"shippingCarrier,omitempty" gorm:"type:varchar(100)"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// CartItems order is the order's display order
	CartItems []CartItem `json:"cartItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Order
func (Order) TableName() string {
	return "orders"
}

// CartItem is an order cart entry. It evolved independently of LineItem:
// same economic fields, but keyed by Key/SKU/Name rather than belonging to
// an invoice.
type CartItem struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index:idx_cart_items_order"`

	// Key is the cart engine's internal item key (legacy "_key")
	Key  string `json:"key,omitempty" gorm:"column:item_key;type:varchar(100)"`
	SKU  string `json:"sku,omitempty" gorm:"type:varchar(100)"`
	Name string `json:"name,omitempty" gorm:"type:varchar(500)"`

	Quantity  *float64 `json:"quantity,omitempty" gorm:"type:decimal(10,3)"`
	UnitPrice *float64 `json:"unitPrice,omitempty" gorm:"type:decimal(10,2)"`
	LineTotal *float64 `json:"lineTotal,omitempty" gorm:"type:decimal(10,2)"`

	Options  pq.StringArray `json:"options,omitempty" gorm:"type:text[]"`
	Upgrades pq.StringArray `json:"upgrades,omitempty" gorm:"type:text[]"`

	Metadata Metadata `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for CartItem
func (CartItem) TableName() string {
	return "order_cart_items"
}
