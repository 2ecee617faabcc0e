package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL   string
	requests  int
	workers   int
	dimension int
	batchSize int
	topK      int
	timeout   time.Duration
}

// phase is one kind of request the driver fires repeatedly.
type phase struct {
	name string
	path string
	body func(r *rand.Rand) any
}

// report summarizes one phase.
type report struct {
	name      string
	total     int
	failed    int64
	elapsed   time.Duration
	latencies []time.Duration
	firstErr  error
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Drive the lookalike HTTP API with random embeddings and report QPS and latency",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "url", "http://localhost:8000", "Base URL of a running lookalike server")
	f.IntVarP(&opts.requests, "requests", "n", 10_000, "Requests per phase")
	f.IntVarP(&opts.workers, "workers", "w", 10, "Concurrent clients")
	f.IntVar(&opts.dimension, "dim", 512, "Embedding dimension the server expects")
	f.IntVar(&opts.batchSize, "batch", 16, "Embeddings per batch request")
	f.IntVar(&opts.topK, "top-k", 3, "top_k sent with every request")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Per-request timeout")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, opts options) error {
	client := &http.Client{
		Timeout: opts.timeout,
		Transport: &http.Transport{
			MaxIdleConns:        opts.workers,
			MaxIdleConnsPerHost: opts.workers,
		},
	}
	api := strings.TrimSuffix(opts.baseURL, "/") + "/api/v1"

	phases := []phase{
		{
			name: "match",
			path: "/match",
			body: func(r *rand.Rand) any {
				return map[string]any{"embedding": randomVector(r, opts.dimension), "top_k": opts.topK}
			},
		},
		{
			name: "batch",
			path: "/match/batch",
			body: func(r *rand.Rand) any {
				embeddings := make([][]float32, opts.batchSize)
				for i := range embeddings {
					embeddings[i] = randomVector(r, opts.dimension)
				}
				return map[string]any{"embeddings": embeddings, "top_k": opts.topK}
			},
		},
	}

	bold := color.New(color.Bold)
	bold.Fprintf(out, "lookalike load test against %s (%d workers, %d requests per phase)\n", api, opts.workers, opts.requests)

	for _, p := range phases {
		rep, err := runPhase(ctx, client, api, p, opts)
		if err != nil {
			return err
		}
		printReport(out, rep)
	}
	return nil
}

// runPhase hands out request slots to a fixed pool of workers. Each worker
// owns its rand source and latency slice, so nothing is shared but counters.
func runPhase(ctx context.Context, client *http.Client, api string, p phase, opts options) (report, error) {
	var (
		next   atomic.Int64
		failed atomic.Int64
		errMu  sync.Mutex
		first  error
	)
	perWorker := make([][]time.Duration, opts.workers)

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range opts.workers {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(w), uint64(time.Now().UnixNano())))
			for next.Add(1) <= int64(opts.requests) {
				if err := ctx.Err(); err != nil {
					return err
				}
				took, err := post(ctx, client, api+p.path, p.body(r))
				if err != nil {
					failed.Add(1)
					errMu.Lock()
					if first == nil {
						first = err
					}
					errMu.Unlock()
					continue
				}
				perWorker[w] = append(perWorker[w], took)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report{}, err
	}

	return report{
		name:      p.name,
		total:     opts.requests,
		failed:    failed.Load(),
		elapsed:   time.Since(start),
		latencies: slices.Concat(perWorker...),
		firstErr:  first,
	}, nil
}

func post(ctx context.Context, client *http.Client, url string, body any) (time.Duration, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	took := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return took, nil
}

func printReport(w io.Writer, rep report) {
	slices.Sort(rep.latencies)
	qps := float64(len(rep.latencies)) / rep.elapsed.Seconds()

	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s\n", rep.name)
	fmt.Fprintf(w, "  requests  %d ok, %d failed in %s\n", len(rep.latencies), rep.failed, rep.elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  qps       %.1f\n", qps)
	fmt.Fprintf(w, "  latency   p50=%s p95=%s p99=%s max=%s\n",
		percentile(rep.latencies, 50), percentile(rep.latencies, 95), percentile(rep.latencies, 99), percentile(rep.latencies, 100))
	if rep.firstErr != nil {
		color.New(color.FgRed).Fprintf(w, "  first error: %v\n", rep.firstErr)
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := (len(sorted)*p + 99) / 100
	i = max(1, min(i, len(sorted)))
	return sorted[i-1].Round(time.Microsecond)
}

func randomVector(r *rand.Rand, dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = r.Float32()*2 - 1
	}
	return vec
}
