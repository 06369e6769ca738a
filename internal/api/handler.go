package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/offers"
	"github.com/dealerstack/onroad/internal/pricing"
	"github.com/dealerstack/onroad/internal/quote"
	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	service *quote.Service
	engine  *offers.Engine
	emi     *pricing.FactorTable
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, service *quote.Service, engine *offers.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		service: service,
		engine:  engine,
		emi:     pricing.DefaultFactorTable(),
		version: version,
	}
}

// QuoteRequest is the request body for POST /quote.
type QuoteRequest struct {
	Item domain.CatalogItem `json:"item"`

	LeadID    string                  `json:"leadId,omitempty"`
	StateCode string                  `json:"stateCode"`
	RTOCode   string                  `json:"rtoCode,omitempty"`
	RegType   domain.RegistrationType `json:"regType,omitempty"`

	InvoiceBase     float64                `json:"invoiceBase,omitempty"`
	InsurerID       string                 `json:"insurerId,omitempty"`
	SelectedAddons  []string               `json:"selectedAddons,omitempty"`
	Accessories     []domain.AccessoryLine `json:"accessories,omitempty"`
	SkipOffers      bool                   `json:"skipOffers,omitempty"`
	IncludeVariants bool                   `json:"includeVariants,omitempty"`
}

// QuoteResponse is the response for POST /quote.
type QuoteResponse struct {
	Snapshot   *domain.PriceSnapshot                                  `json:"snapshot"`
	Offers     *offers.Selection                                      `json:"offers,omitempty"`
	Variants   map[domain.RegistrationType]*domain.RegistrationResult `json:"registrationVariants,omitempty"`
	FinalTotal float64                                                `json:"finalTotal"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Quote handles POST /quote requests.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Item.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "item.productId is required",
		})
		return
	}
	if req.Item.ExShowroom <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "item.exShowroom must be positive",
		})
		return
	}
	if req.StateCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "stateCode is required",
		})
		return
	}

	result, err := h.service.Quote(ctx, &quote.Request{
		TenantID:        tenantID,
		Item:            req.Item,
		LeadID:          req.LeadID,
		StateCode:       req.StateCode,
		RTOCode:         req.RTOCode,
		RegType:         req.RegType,
		InvoiceBase:     req.InvoiceBase,
		InsurerID:       req.InsurerID,
		SelectedAddons:  req.SelectedAddons,
		Accessories:     req.Accessories,
		SkipOffers:      req.SkipOffers,
		IncludeVariants: req.IncludeVariants,
	})
	if err != nil {
		slog.Error("quote failed",
			"product_id", req.Item.ProductID,
			"state", req.StateCode,
			"trace_id", traceID,
			"error", err,
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := QuoteResponse{
		Snapshot:   result.Snapshot,
		Offers:     result.Offers,
		Variants:   result.Variants,
		FinalTotal: result.FinalTotal,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// QuoteAsync handles POST /quote/async: the request is published to the
// event bus and priced by the worker.
func (h *Handler) QuoteAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Item.ProductID == "" || req.StateCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "item.productId and stateCode are required",
		})
		return
	}

	payload, err := json.Marshal(map[string]any{
		"tenantId":       tenantID,
		"traceId":        traceID,
		"item":           req.Item,
		"leadId":         req.LeadID,
		"stateCode":      req.StateCode,
		"rtoCode":        req.RTOCode,
		"regType":        req.RegType,
		"invoiceBase":    req.InvoiceBase,
		"insurerId":      req.InsurerID,
		"selectedAddons": req.SelectedAddons,
		"accessories":    req.Accessories,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode request",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicQuoteRequested, payload); err != nil {
		slog.Error("failed to publish quote request", "trace_id", traceID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to enqueue quote request",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"traceId": traceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetSnapshot retrieves a price snapshot by ID.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	snapID := chi.URLParam(r, "id")

	if snapID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "snapshot id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	snap, err := h.repo.GetSnapshot(ctx, tenantID, snapID)
	if err != nil {
		slog.Error("failed to get snapshot", "id", snapID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "snapshot not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// ListLeadSnapshots returns the snapshots computed for a lead within the
// lookback window (windowSecs query parameter, default 24h).
func (h *Handler) ListLeadSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	leadID := chi.URLParam(r, "id")

	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "lead id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	windowSecs := 86400
	if v := r.URL.Query().Get("windowSecs"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "windowSecs must be a positive integer",
			})
			return
		}
		windowSecs = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(windowSecs) * time.Second)
	snapshots, err := h.repo.GetSnapshotsByLead(ctx, tenantID, leadID, since)
	if err != nil {
		slog.Error("failed to list lead snapshots", "lead_id", leadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list snapshots",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// TaxClassification handles GET /tax/classification.
func (h *Handler) TaxClassification(w http.ResponseWriter, r *http.Request) {
	fuelType := r.URL.Query().Get("fuelType")

	engineCc := 0.0
	if v := r.URL.Query().Get("engineCc"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "engineCc must be a non-negative number",
			})
			return
		}
		engineCc = parsed
	}

	writeJSON(w, http.StatusOK, pricing.ClassifyVehicleTax(fuelType, engineCc))
}

// EMIQuote handles GET /emi. Without a tenure parameter it quotes the
// default tenure plus the full tenure table.
func (h *Handler) EMIQuote(w http.ResponseWriter, r *http.Request) {
	principal, err := strconv.ParseFloat(r.URL.Query().Get("principal"), 64)
	if err != nil || principal <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "principal must be a positive number",
		})
		return
	}

	tenure := pricing.DefaultEMITenure
	if v := r.URL.Query().Get("tenure"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "tenure must be a positive integer",
			})
			return
		}
		tenure = parsed
	}

	options := make([]map[string]any, 0)
	for _, t := range h.emi.Tenures() {
		options = append(options, map[string]any{
			"tenureMonths": t,
			"monthly":      h.emi.Monthly(principal, t),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"principal":    principal,
		"tenureMonths": tenure,
		"monthly":      h.emi.Monthly(principal, tenure),
		"options":      options,
	})
}

// CoinQuote handles GET /coins/quote: applies a coin wallet balance to
// a rupee price and returns the loyalty redemption figures.
func (h *Handler) CoinQuote(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(r.URL.Query().Get("price"), 64)
	if err != nil || price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "price must be a non-negative number",
		})
		return
	}

	var wallet int64
	if v := r.URL.Query().Get("coins"); v != "" {
		wallet, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "coins must be an integer",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, pricing.ComputeCoinPricing(price, wallet))
}

// ListRegistrationRules returns all registration rules for the tenant.
func (h *Handler) ListRegistrationRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rules, err := h.repo.ListRegistrationRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list registration rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list registration rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRegistrationRule returns the highest enabled rule version for a state.
func (h *Handler) GetRegistrationRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	stateCode := chi.URLParam(r, "state")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule, err := h.repo.GetRegistrationRule(ctx, tenantID, stateCode)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "registration rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateRegistrationRule validates and saves a registration rule. Saving
// the same id+version upserts; a new version supersedes older ones at
// lookup time without mutating them.
func (h *Handler) CreateRegistrationRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var rule domain.RegistrationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if err := pricing.ValidateRegistrationRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if rule.Version <= 0 {
		rule.Version = 1
	}
	rule.TenantID = tenantID

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if err := h.repo.SaveRegistrationRule(ctx, tenantID, &rule); err != nil {
		slog.Error("failed to save registration rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save registration rule",
		})
		return
	}

	// Refresh the cache so the next quote sees the new version.
	if h.cache != nil && rule.Enabled {
		if err := h.cache.SetRegistrationRule(ctx, tenantID, &rule, 10*time.Minute); err != nil {
			slog.Warn("failed to refresh registration rule cache", "id", rule.ID, "error", err)
		}
	}

	slog.Info("registration rule created", "id", rule.ID, "state", rule.StateCode, "version", rule.Version)
	writeJSON(w, http.StatusCreated, &rule)
}

// ListInsuranceRules returns all insurance rules for the tenant.
func (h *Handler) ListInsuranceRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rules, err := h.repo.ListInsuranceRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list insurance rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list insurance rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetInsuranceRule returns the highest enabled rule version for a state.
func (h *Handler) GetInsuranceRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	stateCode := chi.URLParam(r, "state")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule, err := h.repo.GetInsuranceRule(ctx, tenantID, stateCode)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "insurance rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateInsuranceRule validates and saves an insurance rule.
func (h *Handler) CreateInsuranceRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var rule domain.InsuranceRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if err := pricing.ValidateInsuranceRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if rule.Version <= 0 {
		rule.Version = 1
	}
	rule.TenantID = tenantID

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if err := h.repo.SaveInsuranceRule(ctx, tenantID, &rule); err != nil {
		slog.Error("failed to save insurance rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save insurance rule",
		})
		return
	}

	if h.cache != nil && rule.Enabled {
		if err := h.cache.SetInsuranceRule(ctx, tenantID, &rule, 10*time.Minute); err != nil {
			slog.Warn("failed to refresh insurance rule cache", "id", rule.ID, "error", err)
		}
	}

	slog.Info("insurance rule created", "id", rule.ID, "state", rule.StateCode, "version", rule.Version)
	writeJSON(w, http.StatusCreated, &rule)
}

// ListOffers returns the tenant's offers loaded in the engine.
// Offers are loaded from the database at startup and can be reloaded via POST /offers/reload.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	loadedOffers := h.engine.GetLoadedOffers(GetTenantID(r.Context()))

	writeJSON(w, http.StatusOK, map[string]any{
		"offers": loadedOffers,
		"count":  len(loadedOffers),
		"source": "database",
	})
}

// GetOffer retrieves an offer by ID from the loaded engine offers.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "id")

	if offerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "offer id is required",
		})
		return
	}

	for _, offer := range h.engine.GetLoadedOffers(GetTenantID(r.Context())) {
		if offer.ID == offerID {
			writeJSON(w, http.StatusOK, offer)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "offer not found",
	})
}

// CreateOfferRequest is the request body for creating an offer.
type CreateOfferRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Amount      float64 `json:"amount,omitempty"`
	MaxDiscount float64 `json:"maxDiscount,omitempty"`
	Stackable   bool    `json:"stackable"`
	Enabled     bool    `json:"enabled"`
}

// CreateOffer validates a dealer offer and saves it to the database.
// After saving, call POST /offers/reload to hot-reload into the engine.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	offerConfig := &domain.OfferConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Amount:      req.Amount,
		MaxDiscount: req.MaxDiscount,
		Stackable:   req.Stackable,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression without mutating the loaded offers
	if err := h.engine.ValidateOffer(offerConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveOfferConfig(ctx, tenantID, offerConfig); err != nil {
			slog.Error("failed to save offer config", "id", offerConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save offer",
			})
			return
		}
	}

	slog.Info("offer created", "id", offerConfig.ID, "name", offerConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"offer":   offerConfig,
		"message": "Offer created. Call POST /offers/reload to apply changes.",
	})
}

// ReloadOffers reloads the tenant's offers from the database into the
// engine. Other tenants' loaded offers are untouched.
func (h *Handler) ReloadOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbOffers, err := h.repo.ListOfferConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list offers from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load offers from database",
		})
		return
	}

	if err := h.engine.ReloadOffers(tenantID, dbOffers); err != nil {
		slog.Error("failed to reload offers into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload offers: " + err.Error(),
		})
		return
	}

	slog.Info("offers reloaded from database", "count", len(dbOffers))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "offers reloaded successfully",
		"count":   len(dbOffers),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
