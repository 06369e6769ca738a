// Package worker provides async quote processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/quote"
)

// Worker processes quote requests asynchronously from the EventBus.
type Worker struct {
	bus     domain.EventBus
	service *quote.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service *quote.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicQuoteRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicQuoteRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processQuote(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicQuoteRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processQuote(ctx, msg.TenantID, msg)
}

// QuoteRequestMessage is the message payload for async quote processing.
type QuoteRequestMessage struct {
	TenantID string             `json:"tenantId"`
	TraceID  string             `json:"traceId,omitempty"`
	Item     domain.CatalogItem `json:"item"`

	LeadID    string                  `json:"leadId,omitempty"`
	StateCode string                  `json:"stateCode"`
	RTOCode   string                  `json:"rtoCode,omitempty"`
	RegType   domain.RegistrationType `json:"regType,omitempty"`

	InvoiceBase    float64                `json:"invoiceBase,omitempty"`
	InsurerID      string                 `json:"insurerId,omitempty"`
	SelectedAddons []string               `json:"selectedAddons,omitempty"`
	Accessories    []domain.AccessoryLine `json:"accessories,omitempty"`
}

// processQuote runs a quote request through the pricing pipeline. The
// service persists the snapshot and publishes the created/failed events.
func (w *Worker) processQuote(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var qMsg QuoteRequestMessage
	if err := json.Unmarshal(msg.Payload, &qMsg); err != nil {
		slog.Error("failed to parse quote request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if qMsg.TenantID != "" {
		tenantID = qMsg.TenantID
	}

	traceID := qMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing quote request",
		"product_id", qMsg.Item.ProductID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	result, err := w.service.Quote(ctx, &quote.Request{
		TenantID:       tenantID,
		Item:           qMsg.Item,
		LeadID:         qMsg.LeadID,
		StateCode:      qMsg.StateCode,
		RTOCode:        qMsg.RTOCode,
		RegType:        qMsg.RegType,
		InvoiceBase:    qMsg.InvoiceBase,
		InsurerID:      qMsg.InsurerID,
		SelectedAddons: qMsg.SelectedAddons,
		Accessories:    qMsg.Accessories,
	})
	if err != nil {
		slog.Error("quote processing failed",
			"product_id", qMsg.Item.ProductID,
			"tenant_id", tenantID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	slog.Info("quote processed",
		"snapshot_id", result.Snapshot.ID,
		"tenant_id", tenantID,
		"total_on_road", result.Snapshot.TotalOnRoad,
		"final_total", result.FinalTotal,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
