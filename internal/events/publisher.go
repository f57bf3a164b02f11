package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"invoice-service/internal/models"
)

// Event subjects for invoice lifecycle events
const (
	SubjectInvoiceCreated  = "invoice.created"
	SubjectInvoiceRendered = "invoice.rendered"
	SubjectInvoiceStored   = "invoice.stored"
)

// InvoiceEvent is the wire payload for invoice lifecycle events
type InvoiceEvent struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	TenantID      string    `json:"tenantId"`
	InvoiceID     string    `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	OrderID       string    `json:"orderId,omitempty"`
	Total         float64   `json:"total,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	ShortCode     string    `json:"shortCode,omitempty"`
	FileSize      int64     `json:"fileSize,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher publishes invoice lifecycle events over NATS
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher creates a new invoice events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		// For local development, set NATS_URL=nats://localhost:4222
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("invoice-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "invoice-events"),
	}, nil
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// PublishInvoiceCreated publishes an invoice.created event
func (p *Publisher) PublishInvoiceCreated(ctx context.Context, invoice *models.Invoice) {
	p.publish(SubjectInvoiceCreated, p.buildEvent(SubjectInvoiceCreated, invoice))
}

// PublishInvoiceRendered publishes an invoice.rendered event
func (p *Publisher) PublishInvoiceRendered(ctx context.Context, invoice *models.Invoice, fileSize int64) {
	event := p.buildEvent(SubjectInvoiceRendered, invoice)
	event.FileSize = fileSize
	p.publish(SubjectInvoiceRendered, event)
}

// PublishInvoiceStored publishes an invoice.stored event with the download
// short code
func (p *Publisher) PublishInvoiceStored(ctx context.Context, invoice *models.Invoice, doc *models.InvoiceDocument) {
	event := p.buildEvent(SubjectInvoiceStored, invoice)
	event.ShortCode = doc.ShortCode
	event.FileSize = doc.FileSize
	event.Total = doc.Total
	event.Currency = doc.Currency
	p.publish(SubjectInvoiceStored, event)
}

// buildEvent creates an InvoiceEvent from an invoice model
func (p *Publisher) buildEvent(eventType string, invoice *models.Invoice) *InvoiceEvent {
	event := &InvoiceEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		TenantID:      invoice.TenantID,
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		Timestamp:     time.Now().UTC(),
	}
	if invoice.OrderID != nil {
		event.OrderID = invoice.OrderID.String()
	}
	return event
}

// publish sends the event asynchronously so event delivery never blocks or
// fails the main flow
func (p *Publisher) publish(subject string, event *InvoiceEvent) {
	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal invoice event")
			return
		}

		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType":     event.EventType,
				"invoiceNumber": event.InvoiceNumber,
				"tenantID":      event.TenantID,
			}).WithError(err).Error("Failed to publish invoice event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType":     event.EventType,
			"invoiceNumber": event.InvoiceNumber,
			"tenantID":      event.TenantID,
		}).Info("Invoice event published")
	}()
}
