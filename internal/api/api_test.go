package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dealerstack/onroad/internal/activity"
	"github.com/dealerstack/onroad/internal/bus"
	"github.com/dealerstack/onroad/internal/cache"
	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/offers"
	"github.com/dealerstack/onroad/internal/quote"
	"github.com/dealerstack/onroad/internal/repository"
)

// createTestServer creates a server backed by a temp SQLite repository
// with a registration rule for KA pre-loaded.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	tmpFile, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	rule := &domain.RegistrationRule{
		ID:        "rule-ka",
		StateCode: "KA",
		Components: []domain.RegistrationComponent{
			{ID: "road_tax", Label: "Road Tax", Type: domain.ComponentPercentage, Percentage: 10},
			{ID: "reg_fee", Label: "Registration Fees", Type: domain.ComponentFixed, Amount: 300},
		},
		Version: 1,
		Enabled: true,
	}
	if err := repo.SaveRegistrationRule(context.Background(), "tenant-001", rule); err != nil {
		t.Fatalf("failed to save registration rule: %v", err)
	}

	lruCache := cache.NewLRUCache(100)
	t.Cleanup(func() { lruCache.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	activitySvc := activity.NewService(repo, lruCache)

	engine, err := offers.NewEngine(activitySvc.GetActivityGetter(), 5)
	if err != nil {
		t.Fatalf("failed to create offer engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	service := quote.NewService(repo, lruCache, eventBus, engine, activitySvc)

	return NewServer(cfg, repo, lruCache, eventBus, service, engine, "test-v1")
}

func quoteBody() QuoteRequest {
	return QuoteRequest{
		Item: domain.CatalogItem{
			ProductID:  "sku-001",
			ModelName:  "Pulsar 150",
			EngineCc:   149.5,
			FuelType:   "PETROL",
			ExShowroom: 100000,
		},
		LeadID:    "lead-001",
		StateCode: "KA",
	}
}

func TestQuoteEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulQuote", func(t *testing.T) {
		body, _ := json.Marshal(quoteBody())
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp QuoteResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Snapshot == nil || resp.Snapshot.ID == "" {
			t.Fatal("expected snapshot in response")
		}
		if resp.Snapshot.RTOCharges != 10300 {
			t.Errorf("expected RTOCharges 10300, got %v", resp.Snapshot.RTOCharges)
		}
		if resp.FinalTotal != 110300 {
			t.Errorf("expected finalTotal 110300, got %v", resp.FinalTotal)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingStateCode", func(t *testing.T) {
		reqBody := quoteBody()
		reqBody.StateCode = ""
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidExShowroom", func(t *testing.T) {
		reqBody := quoteBody()
		reqBody.Item.ExShowroom = -1
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownState", func(t *testing.T) {
		reqBody := quoteBody()
		reqBody.StateCode = "ZZ"
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("SnapshotRetrievable", func(t *testing.T) {
		body, _ := json.Marshal(quoteBody())
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var resp QuoteResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		getReq := httptest.NewRequest(http.MethodGet, "/snapshots/"+resp.Snapshot.ID, nil)
		getReq.Header.Set("X-Tenant-ID", "tenant-001")

		getRR := httptest.NewRecorder()
		server.Router().ServeHTTP(getRR, getReq)

		if getRR.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", getRR.Code)
		}

		var snap domain.PriceSnapshot
		if err := json.Unmarshal(getRR.Body.Bytes(), &snap); err != nil {
			t.Fatalf("failed to parse snapshot: %v", err)
		}
		if snap.ID != resp.Snapshot.ID {
			t.Errorf("expected snapshot %s, got %s", resp.Snapshot.ID, snap.ID)
		}
	})

	t.Run("LeadSnapshots", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/leads/lead-001/snapshots", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count == 0 {
			t.Error("expected at least one snapshot for lead-001")
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		body, _ := json.Marshal(quoteBody())
		req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestStatelessEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("TaxClassification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tax/classification?fuelType=PETROL&engineCc=150", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.TaxClassification
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.HSNCode != "87112029" {
			t.Errorf("expected HSN 87112029, got %s", resp.HSNCode)
		}
		if resp.GSTRate != 28 {
			t.Errorf("expected GST 28, got %v", resp.GSTRate)
		}
	})

	t.Run("TaxClassificationElectric", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tax/classification?fuelType=ELECTRIC", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		var resp domain.TaxClassification
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.GSTRate != 5 {
			t.Errorf("expected GST 5 for electric, got %v", resp.GSTRate)
		}
	})

	t.Run("TaxClassificationBadEngineCc", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tax/classification?engineCc=abc", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("EMIQuote", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/emi?principal=100000", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			TenureMonths int     `json:"tenureMonths"`
			Monthly      float64 `json:"monthly"`
			Options      []any   `json:"options"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.TenureMonths != 36 {
			t.Errorf("expected default tenure 36, got %d", resp.TenureMonths)
		}
		if resp.Monthly != 3500 {
			t.Errorf("expected monthly 3500, got %v", resp.Monthly)
		}
		if len(resp.Options) != 5 {
			t.Errorf("expected 5 tenure options, got %d", len(resp.Options))
		}
	})

	t.Run("EMIQuoteMissingPrincipal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/emi", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CoinQuote", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/coins/quote?price=1000&coins=13", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			CoinsNeeded    int64   `json:"coinsNeeded"`
			CoinsUsed      int64   `json:"coinsUsed"`
			Discount       float64 `json:"discount"`
			EffectivePrice float64 `json:"effectivePrice"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.CoinsNeeded != 13 || resp.CoinsUsed != 13 {
			t.Errorf("expected 13 coins needed and used for 1000 rupees, got %d/%d", resp.CoinsNeeded, resp.CoinsUsed)
		}
		if resp.Discount != 1000 || resp.EffectivePrice != 0 {
			t.Errorf("expected full redemption (discount 1000, effective 0), got %v/%v", resp.Discount, resp.EffectivePrice)
		}
	})
}

func TestRegistrationRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateRule", func(t *testing.T) {
		rule := domain.RegistrationRule{
			ID:        "rule-mh",
			StateCode: "MH",
			Components: []domain.RegistrationComponent{
				{ID: "road_tax", Label: "Road Tax", Type: domain.ComponentPercentage, Percentage: 8},
			},
			Enabled: true,
		}
		body, _ := json.Marshal(rule)
		req := httptest.NewRequest(http.MethodPost, "/rules/registration", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var created domain.RegistrationRule
		json.Unmarshal(rr.Body.Bytes(), &created)
		if created.Version != 1 {
			t.Errorf("expected default version 1, got %d", created.Version)
		}
	})

	t.Run("CreateRuleWithCycle", func(t *testing.T) {
		rule := domain.RegistrationRule{
			ID:        "rule-cycle",
			StateCode: "MH",
			Components: []domain.RegistrationComponent{
				{ID: "a", Type: domain.ComponentPercentage, Percentage: 10, TargetComponentID: "b"},
				{ID: "b", Type: domain.ComponentPercentage, Percentage: 10, TargetComponentID: "a"},
			},
			Enabled: true,
		}
		body, _ := json.Marshal(rule)
		req := httptest.NewRequest(http.MethodPost, "/rules/registration", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for cyclic rule, got %d", rr.Code)
		}
	})

	t.Run("GetRuleByState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/registration/KA", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var rule domain.RegistrationRule
		json.Unmarshal(rr.Body.Bytes(), &rule)
		if rule.ID != "rule-ka" {
			t.Errorf("expected rule-ka, got %s", rule.ID)
		}
	})

	t.Run("GetRuleUnknownState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/registration/ZZ", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/registration", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count == 0 {
			t.Error("expected at least one registration rule")
		}
	})
}

func TestInsuranceRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateRule", func(t *testing.T) {
		rule := domain.InsuranceRule{
			ID:            "ins-ka",
			StateCode:     "KA",
			InsurerName:   "HDFC Ergo",
			IDVPercentage: 95,
			ODComponents: []domain.InsuranceComponent{
				{ID: "od_basic", Label: "Own Damage", Type: domain.ComponentPercentage, Percentage: 2, Basis: domain.BasisIDV},
			},
			Enabled: true,
		}
		body, _ := json.Marshal(rule)
		req := httptest.NewRequest(http.MethodPost, "/rules/insurance", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleBadBasis", func(t *testing.T) {
		rule := domain.InsuranceRule{
			ID:        "ins-bad",
			StateCode: "KA",
			ODComponents: []domain.InsuranceComponent{
				{ID: "od", Type: domain.ComponentPercentage, Percentage: 2, Basis: "MOON_PHASE"},
			},
			Enabled: true,
		}
		body, _ := json.Marshal(rule)
		req := httptest.NewRequest(http.MethodPost, "/rules/insurance", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for bad basis, got %d", rr.Code)
		}
	})

	t.Run("GetRuleByState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/insurance/KA", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var rule domain.InsuranceRule
		json.Unmarshal(rr.Body.Bytes(), &rule)
		if rule.InsurerName != "HDFC Ergo" {
			t.Errorf("expected HDFC Ergo, got %s", rule.InsurerName)
		}
	})
}

func TestOfferEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateOffer", func(t *testing.T) {
		reqBody := CreateOfferRequest{
			ID:         "festive-flat",
			Name:       "Festive Discount",
			Expression: "ex_showroom >= 50000.0",
			Amount:     1000,
			Stackable:  true,
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/offers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateOfferInvalidExpression", func(t *testing.T) {
		reqBody := CreateOfferRequest{
			ID:         "bad-offer",
			Name:       "Bad Offer",
			Expression: `"a string result"`,
			Enabled:    true,
		}
		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/offers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for string expression, got %d", rr.Code)
		}
	})

	t.Run("ReloadOffers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/offers/reload", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 offer reloaded, got %d", resp.Count)
		}
	})

	t.Run("GetOffer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/offers/festive-flat", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var offer domain.OfferConfig
		json.Unmarshal(rr.Body.Bytes(), &offer)
		if offer.Name != "Festive Discount" {
			t.Errorf("expected Festive Discount, got %s", offer.Name)
		}
	})

	t.Run("GetOfferNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/offers/nonexistent", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ListOffers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded offer, got %d", resp.Count)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
