package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoice-service/internal/models"
	"invoice-service/internal/repository"
	"invoice-service/internal/services"
)

// MockInvoiceService is a mock implementation of InvoiceService
type MockInvoiceService struct {
	mock.Mock
}

var _ services.InvoiceService = (*MockInvoiceService)(nil)

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, id uuid.UUID, tenantID string) (*models.Invoice, error) {
	args := m.Called(ctx, id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber, tenantID string) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceNumber, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, tenantID string, req *models.InvoiceUpdateRequest) (*models.Invoice, error) {
	args := m.Called(ctx, id, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID, tenantID string) error {
	args := m.Called(ctx, id, tenantID)
	return args.Error(0)
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, filters repository.InvoiceFilters) ([]models.Invoice, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]models.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) RenderDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) ([]byte, string, error) {
	args := m.Called(ctx, id, tenantID, req)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockInvoiceService) GenerateAndStoreDocument(ctx context.Context, id uuid.UUID, tenantID string, req *models.DocumentRenderRequest) (*models.InvoiceDocument, error) {
	args := m.Called(ctx, id, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceDocument), args.Error(1)
}

func (m *MockInvoiceService) GetDocumentByShortCode(ctx context.Context, shortCode string) ([]byte, *models.InvoiceDocument, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(*models.InvoiceDocument), args.Error(2)
}

func (m *MockInvoiceService) ListDocuments(ctx context.Context, tenantID string, page, limit int) ([]models.InvoiceDocument, int64, error) {
	args := m.Called(ctx, tenantID, page, limit)
	return args.Get(0).([]models.InvoiceDocument), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) GetPrintSettings(tenantID string) (*models.PrintSettings, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrintSettings), args.Error(1)
}

func (m *MockInvoiceService) GetOrCreateSettings(tenantID string) (*models.PrintSettings, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrintSettings), args.Error(1)
}

func (m *MockInvoiceService) UpdatePrintSettings(tenantID string, req *models.PrintSettingsUpdateRequest) (*models.PrintSettings, error) {
	args := m.Called(tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrintSettings), args.Error(1)
}

func (m *MockInvoiceService) ResetPrintSettings(tenantID string) (*models.PrintSettings, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrintSettings), args.Error(1)
}

func (m *MockInvoiceService) CacheHealth(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// setupTestRouter builds a router with the tenant context pre-populated
func setupTestRouter(svc services.InvoiceService, withTenant bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if withTenant {
		r.Use(func(c *gin.Context) {
			c.Set("tenant_id", "tenant-123")
			c.Next()
		})
	}

	h := NewInvoiceHandler(svc)
	r.GET("/api/v1/invoices/:id", h.GetInvoice)
	r.PUT("/api/v1/invoices/:id", h.UpdateInvoice)
	r.DELETE("/api/v1/invoices/:id", h.DeleteInvoice)
	r.GET("/api/v1/invoices/number/:invoiceNumber", h.GetInvoiceByNumber)
	r.GET("/api/v1/invoices/:id/document", h.RenderDocument)
	r.POST("/api/v1/invoices/:id/document", h.RenderDocument)
	r.GET("/api/v1/documents", h.ListDocuments)
	r.PUT("/api/v1/settings/print", h.UpdatePrintSettings)
	r.GET("/d/:shortCode", h.DownloadByShortCode)
	return r
}

func createTestInvoice() *models.Invoice {
	return &models.Invoice{
		ID:            uuid.New(),
		TenantID:      "tenant-123",
		InvoiceNumber: "INV-1700000000",
		IssueDate:     time.Now(),
	}
}

func TestGetInvoice_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	invoice := createTestInvoice()
	svc.On("GetInvoice", mock.Anything, invoice.ID, "tenant-123").Return(invoice, nil)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/"+invoice.ID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, invoice.InvoiceNumber, got.InvoiceNumber)
	svc.AssertExpectations(t)
}

func TestGetInvoice_NotFound(t *testing.T) {
	svc := new(MockInvoiceService)
	id := uuid.New()
	svc.On("GetInvoice", mock.Anything, id, "tenant-123").Return(nil, services.ErrInvoiceNotFound)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/"+id.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "INVOICE_NOT_FOUND")
}

func TestGetInvoice_InvalidID(t *testing.T) {
	router := setupTestRouter(new(MockInvoiceService), true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INVOICE_ID")
}

func TestGetInvoice_MissingTenant(t *testing.T) {
	router := setupTestRouter(new(MockInvoiceService), false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/"+uuid.New().String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TENANT_ID")
}

func TestGetInvoiceByNumber_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	invoice := createTestInvoice()
	svc.On("GetInvoiceByNumber", mock.Anything, invoice.InvoiceNumber, "tenant-123").Return(invoice, nil)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/number/"+invoice.InvoiceNumber, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), invoice.InvoiceNumber)
	svc.AssertExpectations(t)
}

func TestUpdateInvoice_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	invoice := createTestInvoice()
	invoice.Notes = "Updated notes"
	svc.On("UpdateInvoice", mock.Anything, invoice.ID, "tenant-123", mock.Anything).Return(invoice, nil)

	body, _ := json.Marshal(map[string]string{"notes": "Updated notes"})
	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/invoices/"+invoice.ID.String(), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Updated notes")
	svc.AssertExpectations(t)
}

func TestDeleteInvoice_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	id := uuid.New()
	svc.On("DeleteInvoice", mock.Anything, id, "tenant-123").Return(nil)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/invoices/"+id.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestRenderDocument_Binary(t *testing.T) {
	svc := new(MockInvoiceService)
	id := uuid.New()
	pdf := []byte("%PDF-1.3 fake")
	svc.On("RenderDocument", mock.Anything, id, "tenant-123", mock.Anything).Return(pdf, "application/pdf", nil)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/invoices/"+id.String()+"/document", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, pdf, w.Body.Bytes())
}

func TestRenderDocument_Base64Envelope(t *testing.T) {
	svc := new(MockInvoiceService)
	id := uuid.New()
	svc.On("RenderDocument", mock.Anything, id, "tenant-123", mock.Anything).
		Return([]byte("%PDF-1.3 fake"), "application/pdf", nil)

	body, _ := json.Marshal(models.DocumentRenderRequest{Encoding: "base64"})
	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/invoices/"+id.String()+"/document", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.DocumentRenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "application/pdf", resp.ContentType)
	assert.NotEmpty(t, resp.Data)
	assert.Equal(t, 13, resp.Size)
}

func TestRenderDocument_RejectsUnknownEncoding(t *testing.T) {
	router := setupTestRouter(new(MockInvoiceService), true)
	body, _ := json.Marshal(map[string]string{"encoding": "hex"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/invoices/"+uuid.New().String()+"/document", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestDownloadByShortCode_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	doc := &models.InvoiceDocument{InvoiceNumber: "INV-42", ShortCode: "abc123def456"}
	svc.On("GetDocumentByShortCode", mock.Anything, "abc123def456").
		Return([]byte("%PDF-1.3 fake"), doc, nil)

	router := setupTestRouter(svc, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/d/abc123def456", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "INV-42")
}

func TestDownloadByShortCode_NotFound(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("GetDocumentByShortCode", mock.Anything, "missing12345").
		Return(nil, nil, services.ErrDocumentNotFound)

	router := setupTestRouter(svc, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/d/missing12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadByShortCode_Expired(t *testing.T) {
	svc := new(MockInvoiceService)
	svc.On("GetDocumentByShortCode", mock.Anything, "expired12345").
		Return(nil, nil, services.ErrDocumentExpired)

	router := setupTestRouter(svc, false)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/d/expired12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestListDocuments_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	docs := []models.InvoiceDocument{
		{InvoiceNumber: "INV-1", ShortCode: "aaa111bbb222"},
		{InvoiceNumber: "INV-2", ShortCode: "ccc333ddd444"},
	}
	svc.On("ListDocuments", mock.Anything, "tenant-123", 1, 20).Return(docs, int64(2), nil)

	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/documents", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "INV-2")
	assert.Contains(t, w.Body.String(), "\"total\":2")
	svc.AssertExpectations(t)
}

func TestUpdatePrintSettings_Success(t *testing.T) {
	svc := new(MockInvoiceService)
	updated := &models.PrintSettings{TenantID: "tenant-123", PrimaryColor: "#8b0000"}
	svc.On("UpdatePrintSettings", "tenant-123", mock.Anything).Return(updated, nil)

	body, _ := json.Marshal(map[string]string{"primaryColor": "#8b0000"})
	router := setupTestRouter(svc, true)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/settings/print", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "#8b0000")
	svc.AssertExpectations(t)
}
