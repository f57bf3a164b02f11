package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoice-service/internal/clients"
	"invoice-service/internal/events"
	"invoice-service/internal/models"
	"invoice-service/internal/render"
	"invoice-service/internal/repository"
)

// Sentinel errors surfaced to handlers for status mapping
var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExpired  = errors.New("document link expired")
)

// InvoiceService handles invoice lifecycle and document rendering
type InvoiceService interface {
	// CreateInvoice persists a new invoice with its line items
	CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)

	// GetInvoice retrieves a single invoice with line items
	GetInvoice(ctx context.Context, id uuid.UUID, tenantID string) (*models.Invoice, error)

	// GetInvoiceByNumber retrieves a single invoice by its invoice number
	GetInvoiceByNumber(ctx context.Context, invoiceNumber, tenantID string) (*models.Invoice, error)

	// UpdateInvoice applies a partial update to an invoice
	UpdateInvoice(ctx context.Context, id uuid.UUID, tenantID string, req *models.InvoiceUpdateRequest) (*models.Invoice, error)

	// DeleteInvoice soft-deletes an invoice
	DeleteInvoice(ctx context.Context, id uuid.UUID, tenantID string) error

	// ListInvoices retrieves invoices matching the filters
	ListInvoices(ctx context.Context, filters repository.InvoiceFilters) ([]models.Invoice, int64, error)

	// RenderDocument renders the invoice document in-memory (not stored)
	RenderDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) ([]byte, string, error)

	// GenerateAndStoreDocument renders the document, records it, and caches
	// the bytes under a short download code
	GenerateAndStoreDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) (*models.InvoiceDocument, error)

	// GetDocumentByShortCode resolves a public download link to document
	// bytes, re-rendering on cache miss
	GetDocumentByShortCode(ctx context.Context, shortCode string) ([]byte, *models.InvoiceDocument, error)

	// ListDocuments lists stored documents for the tenant
	ListDocuments(ctx context.Context, tenantID string, page, limit int) ([]models.InvoiceDocument, int64, error)

	// GetPrintSettings gets print settings for a tenant
	GetPrintSettings(tenantID string) (*models.PrintSettings, error)

	// GetOrCreateSettings gets or creates default settings for a tenant
	GetOrCreateSettings(tenantID string) (*models.PrintSettings, error)

	// UpdatePrintSettings updates print settings for a tenant
	UpdatePrintSettings(tenantID string, req *models.PrintSettingsUpdateRequest) (*models.PrintSettings, error)

	// ResetPrintSettings removes the tenant's customizations so defaults apply
	ResetPrintSettings(tenantID string) (*models.PrintSettings, error)

	// CacheHealth reports the state of the caching layer
	CacheHealth(ctx context.Context) error
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	orderRepo    repository.OrderRepository
	settingsRepo *repository.PrintSettingsRepository
	documentRepo *repository.DocumentRepository
	logoClient   clients.LogoClient
	publisher    *events.Publisher
	logger       *logrus.Entry
	shortURLBase string
}

// NewInvoiceService creates a new invoice service. The events publisher is
// optional; a nil publisher disables event emission.
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	orderRepo repository.OrderRepository,
	settingsRepo *repository.PrintSettingsRepository,
	documentRepo *repository.DocumentRepository,
	logoClient clients.LogoClient,
	publisher *events.Publisher,
	logger *logrus.Logger,
) InvoiceService {
	shortURLBase := os.Getenv("DOCUMENT_SHORT_URL_BASE")
	if shortURLBase == "" {
		shortURLBase = "/d"
	}

	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		orderRepo:    orderRepo,
		settingsRepo: settingsRepo,
		documentRepo: documentRepo,
		logoClient:   logoClient,
		publisher:    publisher,
		logger:       logger.WithField("component", "invoice-service"),
		shortURLBase: shortURLBase,
	}
}

// CreateInvoice persists a new invoice
func (s *invoiceService) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if err := s.invoiceRepo.Create(invoice); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishInvoiceCreated(ctx, invoice)
	}
	return invoice, nil
}

// GetInvoice retrieves a single invoice
func (s *invoiceService) GetInvoice(ctx context.Context, id uuid.UUID, tenantID string) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(id, tenantID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// GetInvoiceByNumber retrieves a single invoice by its invoice number
func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber, tenantID string) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByInvoiceNumber(invoiceNumber, tenantID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// ListInvoices retrieves invoices matching the filters
func (s *invoiceService) ListInvoices(ctx context.Context, filters repository.InvoiceFilters) ([]models.Invoice, int64, error) {
	return s.invoiceRepo.List(filters)
}

// UpdateInvoice applies a partial update to an invoice
func (s *invoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, tenantID string, req *models.InvoiceUpdateRequest) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(id, tenantID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}

	if req.DueDate != nil {
		invoice.DueDate = req.DueDate
	}
	if req.BillTo != nil {
		invoice.BillTo = *req.BillTo
	}
	if req.ShipTo != nil {
		invoice.ShipTo = *req.ShipTo
	}
	if req.DiscountType != nil {
		invoice.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		invoice.DiscountValue = *req.DiscountValue
	}
	if req.TaxRate != nil {
		invoice.TaxRate = *req.TaxRate
	}
	if req.ShippingAmount != nil {
		invoice.ShippingAmount = req.ShippingAmount
	}
	if req.ShippingCarrier != nil {
		invoice.ShippingCarrier = *req.ShippingCarrier
	}
	if req.TrackingNumber != nil {
		invoice.TrackingNumber = *req.TrackingNumber
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}
	if req.Terms != nil {
		invoice.Terms = *req.Terms
	}

	if err := s.invoiceRepo.Update(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// DeleteInvoice soft-deletes an invoice
func (s *invoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID, tenantID string) error {
	return s.invoiceRepo.Delete(id, tenantID)
}

// RenderDocument renders the invoice document in-memory.
// Every input-level problem degrades: a missing order, unloadable settings or
// a broken logo all produce a document, just a plainer one.
func (s *invoiceService) RenderDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) ([]byte, string, error) {
	invoice, err := s.invoiceRepo.GetByID(id, tenantID)
	if err != nil {
		return nil, "", err
	}
	if invoice == nil {
		return nil, "", ErrInvoiceNotFound
	}

	data, err := s.renderInvoice(ctx, invoice, tenantID, req)
	if err != nil {
		return nil, "", err
	}

	if s.publisher != nil {
		s.publisher.PublishInvoiceRendered(ctx, invoice, int64(len(data)))
	}
	return data, "application/pdf", nil
}

// renderInvoice assembles the render inputs and runs the layout engine
func (s *invoiceService) renderInvoice(ctx context.Context, invoice *models.Invoice, tenantID string, req *models.DocumentRenderRequest) ([]byte, error) {
	order := s.loadOrder(invoice, tenantID)

	settings, err := s.GetOrCreateSettings(tenantID)
	if err != nil {
		s.logger.WithError(err).WithField("tenantId", tenantID).
			Warn("Failed to load print settings, rendering with defaults")
		settings = nil
	}

	opts := render.Options{GeneratedAt: time.Now()}
	if req != nil {
		opts.InvoiceNumber = req.InvoiceNumber
		opts.IssueDate = req.IssueDate
		opts.DueDate = req.DueDate
	}
	opts.Logo = s.fetchLogo(ctx, req, settings)

	engine := render.NewEngine(render.DefaultConfig(), settings)
	data, err := engine.Render(invoice, order, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice document: %w", err)
	}
	return data, nil
}

// loadOrder fetches the linked order for cart reconciliation. A missing or
// unreadable order is a degradation, not a failure.
func (s *invoiceService) loadOrder(invoice *models.Invoice, tenantID string) *models.Order {
	if invoice.OrderID == nil {
		return nil
	}
	order, err := s.orderRepo.GetByID(*invoice.OrderID, tenantID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"invoiceNumber": invoice.InvoiceNumber,
			"orderId":       invoice.OrderID.String(),
		}).Warn("Failed to load linked order, rendering invoice items only")
		return nil
	}
	return order
}

// fetchLogo downloads the logo image, request URL taking precedence over the
// settings URL. Any failure is silent beyond a log line.
func (s *invoiceService) fetchLogo(ctx context.Context, req *models.DocumentRenderRequest, settings *models.PrintSettings) *render.Logo {
	url := ""
	if req != nil && req.LogoURL != "" {
		url = req.LogoURL
	} else if settings != nil {
		url = settings.LogoURL
	}
	if url == "" || s.logoClient == nil {
		return nil
	}

	data, format, err := s.logoClient.FetchLogo(ctx, url)
	if err != nil {
		s.logger.WithError(err).WithField("logoUrl", url).
			Warn("Failed to fetch logo, rendering without it")
		return nil
	}
	return &render.Logo{Data: data, Format: format}
}

// GenerateAndStoreDocument renders the document and records it with a short
// download code
func (s *invoiceService) GenerateAndStoreDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) (*models.InvoiceDocument, error) {
	invoice, err := s.invoiceRepo.GetByID(id, tenantID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}

	data, err := s.renderInvoice(ctx, invoice, tenantID, req)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(data)
	checksum := hex.EncodeToString(sum[:])

	// Storing the same content twice is a no-op: reuse the existing record
	// and its short code, just refresh the bytes cache.
	if existing, err := s.documentRepo.GetLatestByInvoiceID(invoice.ID, tenantID); err == nil &&
		existing != nil && existing.ContentChecksum == checksum {
		s.documentRepo.StoreBytes(ctx, existing.ShortCode, data)
		return existing, nil
	}

	order := s.loadOrder(invoice, tenantID)
	rows := render.Reconcile(invoice.LineItems, cartItems(order))
	totals := render.ComputeTotals(rows, invoice, order)

	currency := "USD"
	if order != nil && order.Currency != "" {
		currency = order.Currency
	}

	pageSize := models.PageSizeLetter
	if settings, err := s.settingsRepo.GetByTenantID(tenantID); err == nil && settings != nil && settings.PageSize != "" {
		pageSize = settings.PageSize
	}

	doc := &models.InvoiceDocument{
		ID:              uuid.New(),
		TenantID:        tenantID,
		InvoiceID:       invoice.ID,
		InvoiceNumber:   invoice.InvoiceNumber,
		PageSize:        pageSize,
		FileSize:        int64(len(data)),
		ContentChecksum: checksum,
		Total:           totals.Total,
		Currency:        currency,
	}

	if err := s.documentRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to save invoice document: %w", err)
	}

	// Build the short URL using the generated short code
	doc.ShortURL = fmt.Sprintf("%s/%s", s.shortURLBase, doc.ShortCode)
	if err := s.documentRepo.Update(doc); err != nil {
		s.logger.WithError(err).Warn("Failed to update document short URL")
	}

	s.documentRepo.StoreBytes(ctx, doc.ShortCode, data)

	if s.publisher != nil {
		s.publisher.PublishInvoiceStored(ctx, invoice, doc)
	}

	s.logger.WithFields(logrus.Fields{
		"invoiceNumber": invoice.InvoiceNumber,
		"shortCode":     doc.ShortCode,
		"fileSize":      doc.FileSize,
	}).Info("Invoice document stored")

	return doc, nil
}

// GetDocumentByShortCode resolves a public download link. Bytes come from
// the cache when warm and are re-rendered from the source invoice otherwise.
func (s *invoiceService) GetDocumentByShortCode(ctx context.Context, shortCode string) ([]byte, *models.InvoiceDocument, error) {
	doc, err := s.documentRepo.GetByShortCode(shortCode)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}
	if doc.ExpiresAt != nil && doc.ExpiresAt.Before(time.Now()) {
		return nil, nil, ErrDocumentExpired
	}

	data := s.documentRepo.GetBytes(ctx, shortCode)
	if data == nil {
		invoice, err := s.invoiceRepo.GetByID(doc.InvoiceID, doc.TenantID)
		if err != nil {
			return nil, nil, err
		}
		if invoice == nil {
			return nil, nil, ErrInvoiceNotFound
		}

		data, err = s.renderInvoice(ctx, invoice, doc.TenantID, nil)
		if err != nil {
			return nil, nil, err
		}
		s.documentRepo.StoreBytes(ctx, shortCode, data)
	}

	if err := s.documentRepo.IncrementAccessCount(doc.ID); err != nil {
		s.logger.WithError(err).WithField("shortCode", shortCode).
			Warn("Failed to record document access")
	}

	return data, doc, nil
}

// ListDocuments lists stored documents for the tenant
func (s *invoiceService) ListDocuments(ctx context.Context, tenantID string, page, limit int) ([]models.InvoiceDocument, int64, error) {
	return s.documentRepo.ListByTenant(tenantID, page, limit)
}

// ResetPrintSettings drops the stored customizations and recreates defaults
func (s *invoiceService) ResetPrintSettings(tenantID string) (*models.PrintSettings, error) {
	if err := s.settingsRepo.Delete(tenantID); err != nil {
		return nil, err
	}
	return s.GetOrCreateSettings(tenantID)
}

// CacheHealth reports the state of the caching layer
func (s *invoiceService) CacheHealth(ctx context.Context) error {
	return s.invoiceRepo.RedisHealth(ctx)
}

func cartItems(order *models.Order) []models.CartItem {
	if order == nil {
		return nil
	}
	return order.CartItems
}

// GetPrintSettings gets print settings for a tenant
func (s *invoiceService) GetPrintSettings(tenantID string) (*models.PrintSettings, error) {
	return s.settingsRepo.GetByTenantID(tenantID)
}

// GetOrCreateSettings gets or creates default settings for a tenant
func (s *invoiceService) GetOrCreateSettings(tenantID string) (*models.PrintSettings, error) {
	settings, err := s.settingsRepo.GetByTenantID(tenantID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	// Create default settings
	settings = &models.PrintSettings{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PrimaryColor:  "#1a73e8",
		TextColor:     "#202124",
		FontFamily:    models.FontFamilyHelvetica,
		PageSize:      models.PageSizeLetter,
		BusinessName:  "Your Store",
		FooterText:    "Thank you for your business!",
		ShowShipTo:    true,
		ShowSKUColumn: true,
		ShowOptions:   true,
		ShowNotes:     true,
		ShowTerms:     true,
	}

	if err := s.settingsRepo.Create(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdatePrintSettings updates print settings for a tenant
func (s *invoiceService) UpdatePrintSettings(tenantID string, req *models.PrintSettingsUpdateRequest) (*models.PrintSettings, error) {
	settings, err := s.GetOrCreateSettings(tenantID)
	if err != nil {
		return nil, err
	}

	// Apply updates
	if req.LogoURL != nil {
		settings.LogoURL = *req.LogoURL
	}
	if req.PrimaryColor != nil {
		settings.PrimaryColor = *req.PrimaryColor
	}
	if req.SecondaryColor != nil {
		settings.SecondaryColor = *req.SecondaryColor
	}
	if req.TextColor != nil {
		settings.TextColor = *req.TextColor
	}
	if req.FontFamily != nil {
		settings.FontFamily = *req.FontFamily
	}
	if req.PageSize != nil {
		settings.PageSize = *req.PageSize
	}
	if req.BusinessName != nil {
		settings.BusinessName = *req.BusinessName
	}
	if req.BusinessAddress != nil {
		settings.BusinessAddress = *req.BusinessAddress
	}
	if req.BusinessPhone != nil {
		settings.BusinessPhone = *req.BusinessPhone
	}
	if req.BusinessEmail != nil {
		settings.BusinessEmail = *req.BusinessEmail
	}
	if req.BusinessWebsite != nil {
		settings.BusinessWebsite = *req.BusinessWebsite
	}
	if req.HeaderText != nil {
		settings.HeaderText = *req.HeaderText
	}
	if req.FooterText != nil {
		settings.FooterText = *req.FooterText
	}
	if req.TermsText != nil {
		settings.TermsText = *req.TermsText
	}
	if req.ShowShipTo != nil {
		settings.ShowShipTo = *req.ShowShipTo
	}
	if req.ShowSKUColumn != nil {
		settings.ShowSKUColumn = *req.ShowSKUColumn
	}
	if req.ShowOptions != nil {
		settings.ShowOptions = *req.ShowOptions
	}
	if req.ShowNotes != nil {
		settings.ShowNotes = *req.ShowNotes
	}
	if req.ShowTerms != nil {
		settings.ShowTerms = *req.ShowTerms
	}

	if err := s.settingsRepo.Update(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
