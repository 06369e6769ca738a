// Benchmark tool for load-testing Onroad with catalog data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/catalog.csv -url http://localhost:8080
//
// This tool:
//   1. Reads catalog rows (model, engine cc, fuel type, ex-showroom, state)
//   2. Sends each row to Onroad for on-road pricing
//   3. Verifies totals are internally consistent
//   4. Reports latency percentiles, throughput, and error counts
//
// Without -csv it generates a synthetic catalog.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CatalogRow is one vehicle variant to price.
type CatalogRow struct {
	ProductID  string
	ModelName  string
	EngineCc   float64
	FuelType   string
	ExShowroom float64
	StateCode  string
}

// QuoteRequest is the Onroad API request format.
type QuoteRequest struct {
	Item struct {
		ProductID  string  `json:"productId"`
		ModelName  string  `json:"modelName"`
		EngineCc   float64 `json:"engineCc"`
		FuelType   string  `json:"fuelType"`
		ExShowroom float64 `json:"exShowroom"`
	} `json:"item"`
	LeadID    string `json:"leadId,omitempty"`
	StateCode string `json:"stateCode"`
}

// QuoteResponse is the Onroad API response format.
type QuoteResponse struct {
	Snapshot struct {
		ID          string  `json:"id"`
		ExShowroom  float64 `json:"exShowroom"`
		RTOCharges  float64 `json:"rtoCharges"`
		TotalOnRoad float64 `json:"totalOnRoad"`
	} `json:"snapshot"`
	FinalTotal float64 `json:"finalTotal"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	Inconsistent   int64 // responses where the totals don't add up

	mu        sync.Mutex
	latencies []int64 // milliseconds
}

func (m *Metrics) recordLatency(ms int64) {
	m.mu.Lock()
	m.latencies = append(m.latencies, ms)
	m.mu.Unlock()
}

func main() {
	csvPath := flag.String("csv", "", "Path to catalog CSV file (optional)")
	baseURL := flag.String("url", "http://localhost:8080", "Onroad base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum quotes to send (0 = all rows)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each quote result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            ONROAD BENCHMARK - Quote Load Generator            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nOnroad URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Onroad is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Onroad not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Onroad is running:")
		fmt.Println("  go run cmd/onroad/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Onroad is healthy")

	var rows []CatalogRow
	var err error
	if *csvPath != "" {
		fmt.Printf("\nReading catalog from %s...\n", *csvPath)
		rows, err = readCatalogCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		count := *limit
		if count <= 0 {
			count = 10000
		}
		fmt.Printf("\nGenerating %d synthetic catalog rows...\n", count)
		rows = syntheticCatalog(count)
	}
	fmt.Printf("✓ Loaded %d catalog rows\n", len(rows))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readCatalogCSV(path string, limit int) ([]CatalogRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var rows []CatalogRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		engineCc, _ := strconv.ParseFloat(record[colIndex["enginecc"]], 64)
		exShowroom, _ := strconv.ParseFloat(record[colIndex["exshowroom"]], 64)

		rows = append(rows, CatalogRow{
			ProductID:  record[colIndex["productid"]],
			ModelName:  record[colIndex["modelname"]],
			EngineCc:   engineCc,
			FuelType:   record[colIndex["fueltype"]],
			ExShowroom: exShowroom,
			StateCode:  record[colIndex["statecode"]],
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

var syntheticModels = []struct {
	name      string
	engineCc  float64
	fuelType  string
	basePrice float64
}{
	{"Activa 6G", 109.5, "PETROL", 78000},
	{"Pulsar 150", 149.5, "PETROL", 112000},
	{"Classic 350", 349, "PETROL", 195000},
	{"iQube", 0, "ELECTRIC", 125000},
	{"Duke 390", 399, "PETROL", 311000},
}

var syntheticStates = []string{"KA", "MH", "DL", "TN", "UP"}

func syntheticCatalog(count int) []CatalogRow {
	rng := rand.New(rand.NewSource(42))
	rows := make([]CatalogRow, count)
	for i := range rows {
		m := syntheticModels[rng.Intn(len(syntheticModels))]
		rows[i] = CatalogRow{
			ProductID:  fmt.Sprintf("sku-%04d", i),
			ModelName:  m.name,
			EngineCc:   m.engineCc,
			FuelType:   m.fuelType,
			ExShowroom: m.basePrice + float64(rng.Intn(10))*1000,
			StateCode:  syntheticStates[rng.Intn(len(syntheticStates))],
		}
	}
	return rows
}

func runBenchmark(rows []CatalogRow, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan CatalogRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := quoteVehicle(client, baseURL, tenantID, row)
				elapsed := time.Since(start).Milliseconds()

				metrics.recordLatency(elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s (%s) -> %v\n", row.ProductID, row.StateCode, err)
					}
					continue
				}

				// The on-road total must cover ex-showroom plus RTO,
				// and discounts can only reduce it.
				snap := result.Snapshot
				if snap.TotalOnRoad < snap.ExShowroom+snap.RTOCharges ||
					result.FinalTotal > snap.TotalOnRoad {
					atomic.AddInt64(&metrics.Inconsistent, 1)
				}

				if verbose {
					fmt.Printf("✓ %-10s | %-12s | %s | ex ₹%10.0f | on-road ₹%10.0f | final ₹%10.0f\n",
						row.ProductID,
						row.ModelName,
						row.StateCode,
						snap.ExShowroom,
						snap.TotalOnRoad,
						result.FinalTotal,
					)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()

	return metrics
}

func quoteVehicle(client *http.Client, baseURL, tenantID string, row CatalogRow) (*QuoteResponse, error) {
	var req QuoteRequest
	req.Item.ProductID = row.ProductID
	req.Item.ModelName = row.ModelName
	req.Item.EngineCc = row.EngineCc
	req.Item.FuelType = row.FuelType
	req.Item.ExShowroom = row.ExShowroom
	req.LeadID = "bench-" + row.ProductID
	req.StateCode = row.StateCode

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 QUOTE STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Inconsistent:     %d\n", m.Inconsistent)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		sort.Slice(m.latencies, func(i, j int) bool { return m.latencies[i] < m.latencies[j] })
		var sum int64
		for _, l := range m.latencies {
			sum += l
		}
		avg := float64(sum) / float64(len(m.latencies))
		qps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avg)
		fmt.Printf("   P50 Latency:      %d ms\n", percentile(m.latencies, 50))
		fmt.Printf("   P95 Latency:      %d ms\n", percentile(m.latencies, 95))
		fmt.Printf("   P99 Latency:      %d ms\n", percentile(m.latencies, 99))
		fmt.Printf("   Throughput:       %.2f quotes/sec\n", qps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if m.TotalErrors == 0 && m.Inconsistent == 0 {
		fmt.Println("   ✅ All quotes priced consistently")
	} else {
		if m.TotalErrors > 0 {
			fmt.Println("   ⚠️  Some quotes failed - check registration rules for all states")
		}
		if m.Inconsistent > 0 {
			fmt.Println("   ❌ Inconsistent totals detected - investigate pricing pipeline")
		}
	}

	fmt.Println()
}

// percentile assumes sorted input.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
