package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PageSize represents the output page size for rendered documents
type PageSize string

const (
	PageSizeLetter PageSize = "letter"
	PageSizeA4     PageSize = "a4"
)

// FontFamilyKey selects the document typeface; unknown keys degrade to the
// default family, never fail
type FontFamilyKey string

const (
	FontFamilyHelvetica FontFamilyKey = "helvetica"
	FontFamilyTimes     FontFamilyKey = "times"
	FontFamilyCourier   FontFamilyKey = "courier"
)

// PrintSettings stores tenant-level document customization settings.
// Colors are sparse hex strings; the theme resolver derives the full palette
// fresh on every render.
type PrintSettings struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;uniqueIndex:idx_print_settings_tenant"`

	// Theme configuration
	LogoURL        string        `json:"logoUrl,omitempty" gorm:"type:varchar(500)"`
	PrimaryColor   string        `json:"primaryColor" gorm:"type:varchar(7);default:'#1a73e8'"`
	SecondaryColor string        `json:"secondaryColor,omitempty" gorm:"type:varchar(7)"`
	TextColor      string        `json:"textColor" gorm:"type:varchar(7);default:'#202124'"`
	FontFamily     FontFamilyKey `json:"fontFamily" gorm:"type:varchar(20);default:'helvetica'"`
	PageSize       PageSize      `json:"pageSize" gorm:"type:varchar(10);default:'letter'"`

	// Business identity block
	BusinessName    string `json:"businessName,omitempty" gorm:"type:varchar(255)"`
	BusinessAddress string `json:"businessAddress,omitempty" gorm:"type:text"`
	BusinessPhone   string `json:"businessPhone,omitempty" gorm:"type:varchar(50)"`
	BusinessEmail   string `json:"businessEmail,omitempty" gorm:"type:varchar(255)"`
	BusinessWebsite string `json:"businessWebsite,omitempty" gorm:"type:varchar(255)"`

	// Content customization
	HeaderText string `json:"headerText,omitempty" gorm:"type:text"`
	FooterText string `json:"footerText,omitempty" gorm:"type:text"`
	TermsText  string `json:"termsText,omitempty" gorm:"type:text"`

	// Display options
	ShowShipTo    bool `json:"showShipTo" gorm:"default:true"`
	ShowSKUColumn bool `json:"showSkuColumn" gorm:"default:true"`
	ShowOptions   bool `json:"showOptions" gorm:"default:true"`
	ShowNotes     bool `json:"showNotes" gorm:"default:true"`
	ShowTerms     bool `json:"showTerms" gorm:"default:true"`

	// Metadata
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for PrintSettings
func (PrintSettings) TableName() string {
	return "print_settings"
}

// PrintSettingsUpdateRequest represents a request to update print settings
type PrintSettingsUpdateRequest struct {
	LogoURL        *string        `json:"logoUrl,omitempty"`
	PrimaryColor   *string        `json:"primaryColor,omitempty"`
	SecondaryColor *string        `json:"secondaryColor,omitempty"`
	TextColor      *string        `json:"textColor,omitempty"`
	FontFamily     *FontFamilyKey `json:"fontFamily,omitempty"`
	PageSize       *PageSize      `json:"pageSize,omitempty"`

	BusinessName    *string `json:"businessName,omitempty"`
	BusinessAddress *string `json:"businessAddress,omitempty"`
	BusinessPhone   *string `json:"businessPhone,omitempty"`
	BusinessEmail   *string `json:"businessEmail,omitempty"`
	BusinessWebsite *string `json:"businessWebsite,omitempty"`

	HeaderText *string `json:"headerText,omitempty"`
	FooterText *string `json:"footerText,omitempty"`
	TermsText  *string `json:"termsText,omitempty"`

	ShowShipTo    *bool `json:"showShipTo,omitempty"`
	ShowSKUColumn *bool `json:"showSkuColumn,omitempty"`
	ShowOptions   *bool `json:"showOptions,omitempty"`
	ShowNotes     *bool `json:"showNotes,omitempty"`
	ShowTerms     *bool `json:"showTerms,omitempty"`
}

// DocumentRenderRequest represents render options for a single document
type DocumentRenderRequest struct {
	// Overrides for the printed metadata block
	InvoiceNumber string     `json:"invoiceNumber,omitempty"`
	IssueDate     *time.Time `json:"issueDate,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`

	// Optional remote logo; takes precedence over the settings logo URL
	LogoURL string `json:"logoUrl,omitempty"`

	// "base64" wraps the PDF bytes in a JSON envelope for transport
	Encoding string `json:"encoding,omitempty" binding:"omitempty,oneof=binary base64"`
}

// DocumentRenderResponse is the JSON envelope for base64-encoded output
type DocumentRenderResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
	ContentType   string `json:"contentType"`
	Data          string `json:"data"`
	Size          int    `json:"size"`
}
