// Package offers provides the CEL-based dealer offer evaluation engine.
package offers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/dealerstack/onroad/internal/domain"
)

// Engine compiles and evaluates dealer offer expressions. Offers are
// partitioned by tenant; a quote only ever sees its own tenant's
// offers, and two tenants may use the same offer ID independently.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	tenantOffers   map[string]map[string]*CompiledOffer // tenant -> offer ID
	activityGetter ActivityGetter
	maxWorkers     int
}

// CompiledOffer holds a pre-compiled CEL program.
type CompiledOffer struct {
	Config  *domain.OfferConfig
	Program cel.Program
}

// ActivityGetter returns how many quotes a lead generated within a time
// window, for repeat-enquiry offers.
type ActivityGetter func(ctx context.Context, tenantID, leadID string, windowSecs int) (int64, error)

// NewEngine creates a new offer evaluation engine.
func NewEngine(activityGetter ActivityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with quote variables
	env, err := cel.NewEnv(
		cel.Variable("quote", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("quote_count", cel.IntType),
		cel.Variable("ex_showroom", cel.DoubleType),
		cel.Variable("on_road", cel.DoubleType),
		cel.Variable("engine_cc", cel.DoubleType),
		cel.Variable("fuel_type", cel.StringType),
		cel.Variable("state_code", cel.StringType),
		cel.Variable("reg_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		tenantOffers:   make(map[string]map[string]*CompiledOffer),
		activityGetter: activityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateOffer compiles and validates an offer without mutating loaded
// engine offers.
func (e *Engine) ValidateOffer(cfg *domain.OfferConfig) error {
	if cfg == nil {
		return fmt.Errorf("offer config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileOffer(cfg)
	return err
}

// LoadOffer compiles and loads an offer into its tenant's bucket.
func (e *Engine) LoadOffer(cfg *domain.OfferConfig) error {
	if cfg.TenantID == "" {
		return fmt.Errorf("offer %s: tenantID is required", cfg.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileOffer(cfg)
	if err != nil {
		return err
	}

	bucket, ok := e.tenantOffers[cfg.TenantID]
	if !ok {
		bucket = make(map[string]*CompiledOffer)
		e.tenantOffers[cfg.TenantID] = bucket
	}
	bucket[cfg.ID] = compiled

	return nil
}

// LoadOffers compiles and loads multiple offers.
func (e *Engine) LoadOffers(configs []*domain.OfferConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadOffer(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the quote data for offer evaluation.
type EvaluateInput struct {
	TenantID       string
	QuoteID        string
	LeadID         string
	ExShowroom     float64
	OnRoad         float64
	EngineCc       float64
	FuelType       string
	StateCode      string
	RegType        string
	ActivityWindow int // seconds
	AdditionalData map[string]any
}

// EvaluateAll evaluates the input tenant's loaded offers in parallel.
// Offers belonging to other tenants are never evaluated.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.OfferResult, error) {
	e.mu.RLock()
	bucket := e.tenantOffers[input.TenantID]
	offers := make([]*CompiledOffer, 0, len(bucket))
	for _, offer := range bucket {
		offers = append(offers, offer)
	}
	e.mu.RUnlock()

	if len(offers) == 0 {
		return nil, nil
	}

	// Get quote activity count if getter is available
	var quoteCount int64
	if e.activityGetter != nil && input.ActivityWindow > 0 && input.LeadID != "" {
		count, err := e.activityGetter(ctx, input.TenantID, input.LeadID, input.ActivityWindow)
		if err == nil {
			quoteCount = count
		}
	}

	// Prepare CEL activation variables
	activation := map[string]any{
		"quote": map[string]any{
			"id":          input.QuoteID,
			"lead_id":     input.LeadID,
			"ex_showroom": input.ExShowroom,
			"on_road":     input.OnRoad,
			"engine_cc":   input.EngineCc,
			"fuel_type":   input.FuelType,
			"state_code":  input.StateCode,
			"reg_type":    input.RegType,
		},
		"quote_count": quoteCount,
		"ex_showroom": input.ExShowroom,
		"on_road":     input.OnRoad,
		"engine_cc":   input.EngineCc,
		"fuel_type":   input.FuelType,
		"state_code":  input.StateCode,
		"reg_type":    input.RegType,
	}

	// Merge additional data
	for k, v := range input.AdditionalData {
		activation[k] = v
	}

	// Parallel evaluation with bounded concurrency
	results := make([]domain.OfferResult, len(offers))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, offer := range offers {
		wg.Add(1)
		go func(idx int, o *CompiledOffer) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateOffer(o, activation, input)
		}(i, offer)
	}

	wg.Wait()

	return results, nil
}

// evaluateOffer evaluates a single offer and returns the result.
func (e *Engine) evaluateOffer(offer *CompiledOffer, activation map[string]any, input *EvaluateInput) domain.OfferResult {
	start := time.Now()

	result := domain.OfferResult{
		OfferID:   offer.Config.ID,
		TenantID:  input.TenantID,
		QuoteID:   input.QuoteID,
		Stackable: offer.Config.Stackable,
	}

	out, _, err := offer.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	result.Discount = toDiscount(out, offer.Config)
	if result.Discount > 0 {
		result.Reason = offer.Config.Name
	}
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toDiscount converts a CEL value to a rupee discount. A bool expression
// applies the configured flat amount; numeric expressions return the
// discount directly. MaxDiscount caps the contribution and negatives
// clamp to zero.
func toDiscount(val ref.Val, cfg *domain.OfferConfig) float64 {
	var discount float64
	switch v := val.(type) {
	case types.Bool:
		if v {
			discount = cfg.Amount
		}
	case types.Double:
		discount = float64(v)
	case types.Int:
		discount = float64(v)
	}

	if discount < 0 {
		return 0
	}
	if cfg.MaxDiscount > 0 && discount > cfg.MaxDiscount {
		return cfg.MaxDiscount
	}
	return discount
}

// OffersCount returns the number of loaded offers across all tenants.
func (e *Engine) OffersCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, bucket := range e.tenantOffers {
		total += len(bucket)
	}
	return total
}

// ReloadOffers replaces one tenant's offers with a fresh set. Other
// tenants' loaded offers are untouched. This enables hot-reloading of
// a dealer's offers from the database.
func (e *Engine) ReloadOffers(tenantID string, configs []*domain.OfferConfig) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	newOffers := make(map[string]*CompiledOffer)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if cfg.TenantID != tenantID {
			return fmt.Errorf("offer %s belongs to tenant %s, not %s", cfg.ID, cfg.TenantID, tenantID)
		}

		compiled, err := e.compileOffer(cfg)
		if err != nil {
			return err
		}
		newOffers[cfg.ID] = compiled
	}

	e.tenantOffers[tenantID] = newOffers

	return nil
}

// GetLoadedOffers returns one tenant's loaded offer configurations.
func (e *Engine) GetLoadedOffers(tenantID string) []*domain.OfferConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bucket := e.tenantOffers[tenantID]
	offers := make([]*domain.OfferConfig, 0, len(bucket))
	for _, compiled := range bucket {
		offers = append(offers, compiled.Config)
	}
	return offers
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tenantOffers = make(map[string]map[string]*CompiledOffer)
	return nil
}

func (e *Engine) compileOffer(cfg *domain.OfferConfig) (*CompiledOffer, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile offer %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("offer %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for offer %s: %w", cfg.ID, err)
	}

	return &CompiledOffer{
		Config:  cfg,
		Program: program,
	}, nil
}
