// Package quote orchestrates the on-road quoting pipeline: rule lookup,
// price assembly, offer evaluation, snapshot persistence, and events.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealerstack/onroad/internal/activity"
	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/offers"
	"github.com/dealerstack/onroad/internal/pricing"
)

// Service runs one quote end to end. The same pipeline backs the
// synchronous HTTP path and the async worker.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *offers.Engine
	selector *offers.Selector
	activity *activity.Service

	assembler pricing.Assembler
	ruleTTL   time.Duration

	// ActivityWindow is how far back repeat-enquiry counting looks, in
	// seconds. Defaults to 24h.
	ActivityWindow int
}

// NewService creates a quote service. Cache, bus, engine, and activity
// may be nil; the pipeline degrades to repo-only lookups with no offers
// and no events.
func NewService(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *offers.Engine, activitySvc *activity.Service) *Service {
	return &Service{
		repo:           repo,
		cache:          cache,
		bus:            bus,
		engine:         engine,
		selector:       offers.NewSelector(),
		activity:       activitySvc,
		ruleTTL:        10 * time.Minute,
		ActivityWindow: 86400,
	}
}

// Request is one quote request.
type Request struct {
	TenantID string             `json:"tenantId"`
	Item     domain.CatalogItem `json:"item"`

	LeadID    string                  `json:"leadId,omitempty"`
	StateCode string                  `json:"stateCode"`
	RTOCode   string                  `json:"rtoCode,omitempty"`
	RegType   domain.RegistrationType `json:"regType"`

	InvoiceBase    float64                `json:"invoiceBase,omitempty"`
	InsurerID      string                 `json:"insurerId,omitempty"`
	SelectedAddons []string               `json:"selectedAddons,omitempty"`
	Accessories    []domain.AccessoryLine `json:"accessories,omitempty"`

	// SkipOffers disables offer evaluation, e.g. for replay.
	SkipOffers bool `json:"skipOffers,omitempty"`

	// IncludeVariants additionally prices the state, BH-series, and
	// company registration types side by side.
	IncludeVariants bool `json:"includeVariants,omitempty"`
}

// Result is the full outcome of one quote.
type Result struct {
	Snapshot   *domain.PriceSnapshot                                  `json:"snapshot"`
	Offers     *offers.Selection                                      `json:"offers,omitempty"`
	Variants   map[domain.RegistrationType]*domain.RegistrationResult `json:"registrationVariants,omitempty"`
	FinalTotal float64                                                `json:"finalTotal"`
}

// Quote prices one catalog item: looks up the state's rules (cache
// first), assembles the snapshot, evaluates dealer offers against the
// on-road total, persists the snapshot, and publishes the created
// event. The snapshot total never includes discounts; FinalTotal does.
func (s *Service) Quote(ctx context.Context, req *Request) (*Result, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if req.StateCode == "" {
		return nil, fmt.Errorf("stateCode is required")
	}
	if req.RegType == "" {
		req.RegType = domain.RegTypeStateIndividual
	}

	regRule, err := s.registrationRule(ctx, req.TenantID, req.StateCode)
	if err != nil {
		s.publishFailure(ctx, req, err)
		return nil, fmt.Errorf("registration rule lookup: %w", err)
	}

	// Insurance rule is optional; the built-in insurer table covers
	// states without a configured rule.
	insRule := s.insuranceRule(ctx, req.TenantID, req.StateCode)

	snapshot, err := s.assembler.BuildSnapshot(&pricing.AssemblyInput{
		TenantID:         req.TenantID,
		Item:             req.Item,
		LeadID:           req.LeadID,
		StateCode:        req.StateCode,
		RTOCode:          req.RTOCode,
		RegType:          req.RegType,
		InvoiceBase:      req.InvoiceBase,
		RegistrationRule: regRule,
		InsuranceRule:    insRule,
		InsurerID:        req.InsurerID,
		SelectedAddons:   req.SelectedAddons,
		Accessories:      req.Accessories,
	})
	if err != nil {
		s.publishFailure(ctx, req, err)
		return nil, err
	}

	result := &Result{
		Snapshot:   snapshot,
		FinalTotal: snapshot.TotalOnRoad,
	}

	if req.IncludeVariants {
		variants, err := pricing.CalculateRegistrationVariants(regRule, &domain.RegistrationContext{
			InvoiceBase: req.InvoiceBase,
			ExShowroom:  req.Item.ExShowroom,
			EngineCc:    req.Item.EngineCc,
			FuelType:    req.Item.FuelType,
		})
		if err != nil {
			slog.Warn("failed to price registration variants", "state", req.StateCode, "error", err)
		} else {
			result.Variants = variants
		}
	}

	if s.engine != nil && !req.SkipOffers {
		offerResults, err := s.engine.EvaluateAll(ctx, &offers.EvaluateInput{
			TenantID:       req.TenantID,
			QuoteID:        snapshot.ID,
			LeadID:         req.LeadID,
			ExShowroom:     snapshot.ExShowroom,
			OnRoad:         snapshot.TotalOnRoad,
			EngineCc:       req.Item.EngineCc,
			FuelType:       req.Item.FuelType,
			StateCode:      req.StateCode,
			RegType:        string(req.RegType),
			ActivityWindow: s.ActivityWindow,
		})
		if err != nil {
			slog.Error("offer evaluation failed", "quote_id", snapshot.ID, "error", err)
		} else if len(offerResults) > 0 {
			selection := s.selector.Select(snapshot.TotalOnRoad, offerResults)
			result.Offers = selection
			result.FinalTotal = snapshot.TotalOnRoad - selection.TotalDiscount
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveSnapshot(ctx, req.TenantID, snapshot); err != nil {
			s.publishFailure(ctx, req, err)
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	if s.activity != nil && req.LeadID != "" {
		if _, err := s.activity.RecordQuote(ctx, req.TenantID, req.LeadID, time.Duration(s.ActivityWindow)*time.Second); err != nil {
			slog.Warn("failed to record quote activity", "lead_id", req.LeadID, "error", err)
		}
	}

	s.publishCreated(ctx, req.TenantID, snapshot)

	return result, nil
}

// registrationRule resolves the state's rule, cache first.
func (s *Service) registrationRule(ctx context.Context, tenantID, stateCode string) (*domain.RegistrationRule, error) {
	if s.cache != nil {
		rule, err := s.cache.GetRegistrationRule(ctx, tenantID, stateCode)
		if err == nil && rule != nil {
			return rule, nil
		}
	}

	if s.repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}

	rule, err := s.repo.GetRegistrationRule(ctx, tenantID, stateCode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRegistrationRule(ctx, tenantID, rule, s.ruleTTL); err != nil {
			slog.Warn("failed to cache registration rule", "state", stateCode, "error", err)
		}
	}

	return rule, nil
}

// insuranceRule resolves the state's insurance rule, cache first.
// A missing rule is not an error.
func (s *Service) insuranceRule(ctx context.Context, tenantID, stateCode string) *domain.InsuranceRule {
	if s.cache != nil {
		rule, err := s.cache.GetInsuranceRule(ctx, tenantID, stateCode)
		if err == nil && rule != nil {
			return rule
		}
	}

	if s.repo == nil {
		return nil
	}

	rule, err := s.repo.GetInsuranceRule(ctx, tenantID, stateCode)
	if err != nil {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetInsuranceRule(ctx, tenantID, rule, s.ruleTTL); err != nil {
			slog.Warn("failed to cache insurance rule", "state", stateCode, "error", err)
		}
	}

	return rule
}

func (s *Service) publishCreated(ctx context.Context, tenantID string, snapshot *domain.PriceSnapshot) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, domain.TopicSnapshotCreated, payload); err != nil {
		slog.Warn("failed to publish snapshot event", "snapshot_id", snapshot.ID, "error", err)
	}
}

func (s *Service) publishFailure(ctx context.Context, req *Request, cause error) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"productId": req.Item.ProductID,
		"leadId":    req.LeadID,
		"stateCode": req.StateCode,
		"error":     cause.Error(),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, req.TenantID, domain.TopicQuoteFailed, payload); err != nil {
		slog.Warn("failed to publish quote failure", "error", err)
	}
}
