package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rupamthxt/lookalike/internal/store"
)

const (
	Dimension  = 512
	Characters = 1_200 // roughly the size of the full character catalog
	NumQueries = 20_000
	BatchSize  = 64
	Workers    = 8
)

func main() {
	fmt.Println("🔥 Starting Lookalike Engine Benchmark")
	fmt.Printf("Config: Dim=%d | Characters=%d | Queries=%d\n", Dimension, Characters, NumQueries)

	// --- Phase 1: Load ---
	fmt.Println("\n--- Phase 1: Catalog Load (parse + normalize) ---")
	raw := syntheticCatalog(Characters, Dimension)
	start := time.Now()
	cat, err := store.Load(bytes.NewReader(raw), Dimension)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load failed:", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Loaded %d rows (%.1f MB JSON) in %s\n", cat.Len(), float64(len(raw))/1e6, time.Since(start))

	engine, err := store.NewEngine(cat, store.MatchOptions{TopK: 3})
	if err != nil {
		fmt.Fprintln(os.Stderr, "engine failed:", err)
		os.Exit(1)
	}

	// --- Phase 2: Concurrent single queries ---
	fmt.Println("\n--- Phase 2: Concurrent Match ---")
	startSearch := time.Now()
	var wg sync.WaitGroup
	perWorker := NumQueries / Workers
	for w := 0; w < Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := engine.Match(randomVector(Dimension), store.MatchOptions{}); err != nil {
					fmt.Println("❌ match error:", err)
				}
			}
		}()
	}
	wg.Wait()
	qps := float64(perWorker*Workers) / time.Since(startSearch).Seconds()
	fmt.Printf("🚀 Match QPS: %.2f\n", qps)

	// --- Phase 3: Batches ---
	fmt.Println("\n--- Phase 3: Batch Match ---")
	batches := NumQueries / BatchSize
	startBatch := time.Now()
	for b := 0; b < batches; b++ {
		queries := make([][]float32, BatchSize)
		for i := range queries {
			queries[i] = randomVector(Dimension)
		}
		if _, err := engine.MatchBatch(context.Background(), queries, store.MatchOptions{}); err != nil {
			fmt.Println("❌ batch error:", err)
		}
	}
	qps = float64(batches*BatchSize) / time.Since(startBatch).Seconds()
	fmt.Printf("🚀 Batch QPS: %.2f\n", qps)
}

func syntheticCatalog(n, dim int) []byte {
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{
			"id":            i + 1,
			"name":          fmt.Sprintf("Character %d", i+1),
			"portrait_path": fmt.Sprintf("/character/%d.webp", i+1),
			"embedding":     randomVector(dim),
		}
	}
	raw, _ := json.Marshal(records)
	return raw
}

func randomVector(dim int) []float32 {
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		vec[i] = rand.Float32()*2 - 1
	}
	return vec
}
