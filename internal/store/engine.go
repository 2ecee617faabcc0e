package store

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Candidate is one ranked catalog entry for a query.
type Candidate struct {
	Character Character `json:"character"`
	Cosine    float64   `json:"cosine"`
	Score     int       `json:"score"`
	Row       int       `json:"-"`
}

// MatchResult is the outcome of matching one query. Top is nil when the
// result is unknown.
type MatchResult struct {
	Candidates []Candidate `json:"candidates"`
	Top        *Candidate  `json:"top"`
	Unknown    bool        `json:"unknown"`
}

// MatchOptions tunes a single match. Zero values fall back to the engine defaults.
type MatchOptions struct {
	TopK      int
	Threshold *float64
}

func (o MatchOptions) validate() error {
	if o.TopK < 0 {
		return &InvalidOptionsError{Field: "top_k", Reason: "must not be negative"}
	}
	if o.Threshold != nil && (*o.Threshold < -1 || *o.Threshold > 1) {
		return &InvalidOptionsError{Field: "threshold", Reason: "must be within [-1, 1]"}
	}
	return nil
}

// Engine answers nearest-neighbor queries against the current catalog. The
// catalog is only ever replaced wholesale, so concurrent queries need no locks.
type Engine struct {
	catalog  atomic.Pointer[Catalog]
	defaults MatchOptions
}

// NewEngine returns an engine serving cat. defaults supplies top_k and
// threshold for queries that leave them unset.
func NewEngine(cat *Catalog, defaults MatchOptions) (*Engine, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := defaults.validate(); err != nil {
		return nil, err
	}
	if defaults.TopK == 0 {
		defaults.TopK = DefaultTopK
	}
	e := &Engine{defaults: defaults}
	e.catalog.Store(cat)
	return e, nil
}

// Catalog returns the catalog currently being served.
func (e *Engine) Catalog() *Catalog {
	return e.catalog.Load()
}

// Swap installs cat and returns the catalog it replaced. Queries already
// running keep the catalog they started with.
func (e *Engine) Swap(cat *Catalog) (*Catalog, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	return e.catalog.Swap(cat), nil
}

// Similarities returns the cosine similarity between query and every row.
func (c *Catalog) Similarities(query []float32) ([]float64, error) {
	if c == nil || c.rows == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(query) != c.dim {
		return nil, &DimensionMismatchError{Want: c.dim, Got: len(query)}
	}

	q := normalize(query)
	sims := make([]float64, c.rows)
	for i := range sims {
		sims[i] = dot(q, c.row(i))
	}
	return sims, nil
}

// Match ranks the catalog against query.
func (e *Engine) Match(query []float32, opts MatchOptions) (*MatchResult, error) {
	opts, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	return matchCatalog(e.catalog.Load(), query, opts)
}

// MatchBatch matches every query against the same catalog snapshot. Results
// are in input order; the first failing query aborts the batch.
func (e *Engine) MatchBatch(ctx context.Context, queries [][]float32, opts MatchOptions) ([]*MatchResult, error) {
	opts, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	cat := e.catalog.Load()

	results := make([]*MatchResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := matchCatalog(cat, q, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) resolve(opts MatchOptions) (MatchOptions, error) {
	if err := opts.validate(); err != nil {
		return opts, err
	}
	if opts.TopK == 0 {
		opts.TopK = e.defaults.TopK
	}
	if opts.Threshold == nil {
		opts.Threshold = e.defaults.Threshold
	}
	return opts, nil
}

func matchCatalog(cat *Catalog, query []float32, opts MatchOptions) (*MatchResult, error) {
	sims, err := cat.Similarities(query)
	if err != nil {
		return nil, err
	}

	ranked := Rank(sims, opts.TopK)
	result := &MatchResult{Candidates: make([]Candidate, len(ranked))}
	for i, m := range ranked {
		result.Candidates[i] = Candidate{
			Character: cat.Character(m.Index),
			Cosine:    m.Score,
			Score:     PercentScore(m.Score),
			Row:       m.Index,
		}
	}

	classify(result, opts.Threshold)
	return result, nil
}
