package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL       = "http://localhost:8080"
	locationID    = "loadgen-warehouse"
	itemID        = "loadgen-item"
	initialStock  = 20
	totalRequests = 50
)

type expiry struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type item struct {
	ItemID   string `json:"itemId"`
	Expiry   expiry `json:"expiry"`
	Quantity int    `json:"quantity"`
}

type allocateRequest struct {
	LocationID string `json:"locationId"`
	OrderID    string `json:"orderId"`
	Items      []item `json:"items"`
}

type allocateResponse struct {
	Results []struct {
		Outcome string `json:"outcome"`
	} `json:"results"`
	Retry []item `json:"retry"`
}

type stockRequest struct {
	LocationID string `json:"locationId"`
	Items      []item `json:"items"`
}

func main() {
	client := &http.Client{Timeout: 10 * time.Second}
	exp := expiry{Year: 2027, Month: 6, Day: 30}
	testItem := func(qty int) item {
		return item{ItemID: itemID, Expiry: exp, Quantity: qty}
	}

	// Seed stock
	if err := postJSON(client, "/api/stock", stockRequest{
		LocationID: locationID,
		Items:      []item{testItem(initialStock)},
	}, nil); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	// Spawn concurrent allocation requests, one order each
	var committed atomic.Int32
	var rejected atomic.Int32
	var transient atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()
	runID := time.Now().UnixNano()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(orderNum int) {
			defer wg.Done()

			var resp allocateResponse
			err := postJSON(client, "/api/allocate", allocateRequest{
				LocationID: locationID,
				OrderID:    fmt.Sprintf("order-%d-%d", runID, orderNum),
				Items:      []item{testItem(1)},
			}, &resp)
			if err != nil || len(resp.Results) != 1 {
				transient.Add(1)
				return
			}

			switch resp.Results[0].Outcome {
			case "committed":
				committed.Add(1)
			case "transient":
				transient.Add(1)
			default:
				rejected.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOADGEN RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Committed:        %d\n", committed.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Transient:        %d\n", transient.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=====================================")

	if committed.Load() == initialStock && rejected.Load() == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d orders committed, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d committed/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, committed.Load(), rejected.Load())
	}
}

func postJSON(client *http.Client, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
