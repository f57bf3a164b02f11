package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-service/internal/models"
	"invoice-service/internal/repository"
	"invoice-service/internal/services"
)

// InvoiceHandler handles HTTP requests for invoice operations
type InvoiceHandler struct {
	invoiceService services.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceService services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// ErrorResponse is a generic error response for invoice endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// getTenantID extracts tenant ID from context
// SECURITY: RequireTenantID middleware ensures this is always set
func getTenantID(c *gin.Context) (string, bool) {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return "", false
	}
	return tenantID.(string), true
}

func missingTenant(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "MISSING_TENANT_ID",
		Message: "X-Tenant-ID header is required",
	})
}

func parseInvoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_INVOICE_ID",
			Message: "Invoice ID must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// HealthCheck reports service liveness
// GET /health
func (h *InvoiceHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "invoice-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck reports service readiness including the cache layer state
// GET /ready
func (h *InvoiceHandler) ReadinessCheck(c *gin.Context) {
	cache := "ok"
	if err := h.invoiceService.CacheHealth(c.Request.Context()); err != nil {
		cache = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "invoice-service",
		"cache":   cache,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateInvoice creates a new invoice
// POST /api/v1/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	var invoice models.Invoice
	if err := c.ShouldBindJSON(&invoice); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}
	invoice.TenantID = tenantID
	if invoice.IssueDate.IsZero() {
		invoice.IssueDate = time.Now()
	}

	created, err := h.invoiceService.CreateInvoice(c.Request.Context(), &invoice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "CREATE_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetInvoice retrieves a single invoice
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), id, tenantID)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "INVOICE_NOT_FOUND",
				Message: "Invoice not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "FETCH_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// GetInvoiceByNumber retrieves a single invoice by its invoice number
// GET /api/v1/invoices/number/:invoiceNumber
func (h *InvoiceHandler) GetInvoiceByNumber(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	invoiceNumber := c.Param("invoiceNumber")
	if invoiceNumber == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_INVOICE_NUMBER",
			Message: "Invoice number is required",
		})
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByNumber(c.Request.Context(), invoiceNumber, tenantID)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "INVOICE_NOT_FOUND",
				Message: "Invoice not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "FETCH_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice applies a partial update to an invoice
// PUT /api/v1/invoices/:id
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	var req models.InvoiceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), id, tenantID, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "INVOICE_NOT_FOUND",
				Message: "Invoice not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "UPDATE_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// DeleteInvoice soft-deletes an invoice
// DELETE /api/v1/invoices/:id
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), id, tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "DELETE_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListInvoices lists invoices for the tenant
// GET /api/v1/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	filters := repository.InvoiceFilters{TenantID: tenantID}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filters.Limit = limit
	}
	if orderIDStr := c.Query("order_id"); orderIDStr != "" {
		orderID, err := uuid.Parse(orderIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "INVALID_ORDER_ID",
				Message: "order_id must be a valid UUID",
			})
			return
		}
		filters.OrderID = &orderID
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "FETCH_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoices": invoices,
		"total":    total,
	})
}

// bindRenderRequest reads the optional render request from the body (POST)
// or query params (GET)
func bindRenderRequest(c *gin.Context) (*models.DocumentRenderRequest, error) {
	var req models.DocumentRenderRequest
	if c.Request.Method == http.MethodPost && c.ContentType() == "application/json" {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
	} else {
		req.InvoiceNumber = c.Query("invoice_number")
		req.LogoURL = c.Query("logo_url")
		req.Encoding = c.DefaultQuery("encoding", "")
	}
	return &req, nil
}

// RenderDocument renders the invoice document in-memory
// GET|POST /api/v1/invoices/:id/document
func (h *InvoiceHandler) RenderDocument(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	req, err := bindRenderRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	data, contentType, err := h.invoiceService.RenderDocument(c.Request.Context(), id, tenantID, req)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "INVOICE_NOT_FOUND",
				Message: "Invoice not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "RENDER_FAILED",
			Message: err.Error(),
		})
		return
	}

	if req.Encoding == "base64" {
		c.JSON(http.StatusOK, models.DocumentRenderResponse{
			InvoiceNumber: req.InvoiceNumber,
			ContentType:   contentType,
			Data:          base64.StdEncoding.EncodeToString(data),
			Size:          len(data),
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoice-%s.pdf\"", id))
	c.Data(http.StatusOK, contentType, data)
}

// StoreDocument renders and stores the invoice document
// POST /api/v1/invoices/:id/document/store
func (h *InvoiceHandler) StoreDocument(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	req, err := bindRenderRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	doc, err := h.invoiceService.GenerateAndStoreDocument(c.Request.Context(), id, tenantID, req)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "INVOICE_NOT_FOUND",
				Message: "Invoice not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "STORE_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListDocuments lists stored invoice documents for the tenant
// GET /api/v1/documents
func (h *InvoiceHandler) ListDocuments(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, total, err := h.invoiceService.ListDocuments(c.Request.Context(), tenantID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "FETCH_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
	})
}

// DownloadByShortCode handles public document download via short URL
// GET /d/:shortCode
// No authentication: the short code is the capability
func (h *InvoiceHandler) DownloadByShortCode(c *gin.Context) {
	shortCode := c.Param("shortCode")
	if shortCode == "" || len(shortCode) > 32 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_SHORT_CODE",
			Message: "Short code is missing or malformed",
		})
		return
	}

	data, doc, err := h.invoiceService.GetDocumentByShortCode(c.Request.Context(), shortCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDocumentNotFound), errors.Is(err, services.ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "DOCUMENT_NOT_FOUND",
				Message: "Document not found",
			})
		case errors.Is(err, services.ErrDocumentExpired):
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "DOCUMENT_EXPIRED",
				Message: "This download link has expired",
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "DOWNLOAD_FAILED",
				Message: err.Error(),
			})
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"invoice-%s.pdf\"", doc.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", data)
}

// GetPrintSettings gets print settings for the tenant
// GET /api/v1/settings/print
func (h *InvoiceHandler) GetPrintSettings(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	settings, err := h.invoiceService.GetPrintSettings(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "FETCH_FAILED",
			Message: err.Error(),
		})
		return
	}

	if settings == nil {
		settings, err = h.invoiceService.GetOrCreateSettings(tenantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "CREATE_FAILED",
				Message: err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, settings)
}

// ResetPrintSettings removes the tenant's customizations and returns defaults
// DELETE /api/v1/settings/print
func (h *InvoiceHandler) ResetPrintSettings(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	settings, err := h.invoiceService.ResetPrintSettings(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "RESET_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdatePrintSettings updates print settings for the tenant
// PUT /api/v1/settings/print
func (h *InvoiceHandler) UpdatePrintSettings(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		missingTenant(c)
		return
	}

	var req models.PrintSettingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	settings, err := h.invoiceService.UpdatePrintSettings(tenantID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "UPDATE_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, settings)
}
