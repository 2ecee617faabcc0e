package http

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rupamthxt/lookalike/internal/cluster"
	"github.com/rupamthxt/lookalike/internal/logging"
	"github.com/rupamthxt/lookalike/internal/metrics"
	"github.com/rupamthxt/lookalike/internal/store"
)

// ErrSourceNotAllowed is returned by a Reloader asked to load a location
// other than the configured catalog when overrides are disabled.
var ErrSourceNotAllowed = errors.New("reload source differs from the configured catalog")

// Reloader replaces the served catalog with the one at location.
type Reloader interface {
	Reload(ctx context.Context, location, checksum string) (rows int, sum string, err error)
}

// Joiner adds a node to the raft cluster.
type Joiner interface {
	Join(nodeID, addr string) error
}

type Handler struct {
	engine    *store.Engine
	scoreMode store.ScoreMode
	reloader  Reloader
	joiner    Joiner
	log       *logging.Logger
	version   string
}

// NewHandler wires the HTTP handlers. reloader and joiner may be nil, in
// which case the matching admin routes answer 501.
func NewHandler(engine *store.Engine, scoreMode store.ScoreMode, reloader Reloader, joiner Joiner, log *logging.Logger, version string) *Handler {
	if log == nil {
		log = logging.Noop()
	}
	return &Handler{
		engine:    engine,
		scoreMode: scoreMode,
		reloader:  reloader,
		joiner:    joiner,
		log:       log,
		version:   version,
	}
}

func (h *Handler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Lookalike matching API",
		"status":  "running",
		"version": h.version,
	})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "rows": h.engine.Catalog().Len()})
}

func (h *Handler) Match(c *fiber.Ctx) error {
	metrics.MatchRequests.WithLabelValues("match").Inc()

	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, bodyError(err))
	}
	if len(req.Embedding) == 0 {
		return h.fail(c, store.ErrInvalidQueryShape)
	}

	opts, mode, err := h.options(req.MatchOptions)
	if err != nil {
		return h.fail(c, err)
	}
	query, err := store.ParseQuery(req.Embedding)
	if err != nil {
		return h.fail(c, err)
	}

	start := time.Now()
	res, err := h.engine.Match(query, opts)
	elapsed := time.Since(start)
	metrics.MatchDuration.Observe(elapsed.Seconds())
	if err != nil {
		return h.fail(c, err)
	}

	unknown := 0
	if res.Unknown {
		unknown = 1
		metrics.UnknownResults.Inc()
	}
	h.log.LogMatch(c.UserContext(), 1, len(res.Candidates), unknown, elapsed, nil)

	return c.JSON(NewMatchResponse(res, mode))
}

func (h *Handler) MatchBatch(c *fiber.Ctx) error {
	metrics.MatchRequests.WithLabelValues("batch").Inc()

	var req BatchMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, bodyError(err))
	}
	if len(req.Embeddings) == 0 {
		return h.fail(c, store.ErrInvalidQueryShape)
	}

	opts, mode, err := h.options(req.MatchOptions)
	if err != nil {
		return h.fail(c, err)
	}
	queries := make([][]float32, len(req.Embeddings))
	for i, raw := range req.Embeddings {
		if queries[i], err = store.ParseQuery(raw); err != nil {
			return h.fail(c, err)
		}
	}

	start := time.Now()
	results, err := h.engine.MatchBatch(c.UserContext(), queries, opts)
	elapsed := time.Since(start)
	metrics.MatchDuration.Observe(elapsed.Seconds())
	if err != nil {
		return h.fail(c, err)
	}

	resp := BatchMatchResponse{Results: make([]MatchResponse, len(results))}
	unknown := 0
	for i, res := range results {
		if res.Unknown {
			unknown++
			metrics.UnknownResults.Inc()
		}
		resp.Results[i] = NewMatchResponse(res, mode)
	}
	// Every result in a batch has the same candidate count.
	h.log.LogMatch(c.UserContext(), len(queries), len(results[0].Candidates), unknown, elapsed, nil)

	return c.JSON(resp)
}

func (h *Handler) Catalog(c *fiber.Ctx) error {
	cat := h.engine.Catalog()
	return c.JSON(CatalogResponse{
		Rows:      cat.Len(),
		Dimension: cat.Dim(),
		Checksum:  cat.Checksum(),
		Source:    cat.Source(),
	})
}

func (h *Handler) Character(c *fiber.Ctx) error {
	_, ch, ok := h.engine.Catalog().Find(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "character not found", Kind: "not_found"})
	}
	return c.JSON(ch)
}

func (h *Handler) Reload(c *fiber.Ctx) error {
	if h.reloader == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: "reload is not configured", Kind: "unsupported"})
	}

	var req ReloadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "cannot parse json", Kind: "bad_request"})
		}
	}

	rows, sum, err := h.reloader.Reload(c.UserContext(), req.Source, req.Checksum)
	if err != nil {
		status, kind := fiber.StatusInternalServerError, "reload_failed"
		switch {
		case errors.Is(err, ErrSourceNotAllowed):
			status, kind = fiber.StatusForbidden, "forbidden"
		case errors.Is(err, cluster.ErrNotLeader):
			status, kind = fiber.StatusConflict, "not_leader"
		case store.IsLoadError(err):
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
	}
	return c.JSON(ReloadResponse{Status: "reloaded", Rows: rows, Checksum: sum})
}

func (h *Handler) Join(c *fiber.Ctx) error {
	if h.joiner == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: "clustering is not enabled", Kind: "unsupported"})
	}

	var req JoinRequest
	if err := c.BodyParser(&req); err != nil || req.NodeID == "" || req.RaftAddr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "node_id and raft_addr are required", Kind: "bad_request"})
	}

	if err := h.joiner.Join(req.NodeID, req.RaftAddr); err != nil {
		status, kind := fiber.StatusInternalServerError, "join_failed"
		if errors.Is(err, cluster.ErrNotLeader) {
			status, kind = fiber.StatusConflict, "not_leader"
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
	}
	h.log.Info("node joined cluster", "node_id", req.NodeID, "raft_addr", req.RaftAddr)
	return c.JSON(JoinResponse{Status: "joined", NodeID: req.NodeID})
}

func (h *Handler) options(in MatchOptions) (store.MatchOptions, store.ScoreMode, error) {
	mode := h.scoreMode
	if in.ScoreMode != "" {
		var err error
		if mode, err = store.ParseScoreMode(in.ScoreMode); err != nil {
			return store.MatchOptions{}, "", err
		}
	}
	return store.MatchOptions{TopK: in.TopK, Threshold: in.Threshold}, mode, nil
}

// fail maps request errors onto status codes. Nothing here touches the
// shared catalog, so one bad request never affects another.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status, kind := classifyError(err)
	metrics.MatchErrors.WithLabelValues(kind).Inc()
	h.log.LogMatch(c.UserContext(), 0, 0, 0, 0, err)
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
}

// bodyError reports a mistyped option field as invalid options. Anything
// else wrong with the body is a malformed query.
func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return store.ErrInvalidQueryShape
	}
	field := typeErr.Field
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch field {
	case "top_k", "threshold", "score_mode":
		return &store.InvalidOptionsError{Field: field, Reason: "cannot use JSON " + typeErr.Value + " as " + typeErr.Type.Kind().String()}
	default:
		return store.ErrInvalidQueryShape
	}
}

func classifyError(err error) (int, string) {
	var dimErr *store.DimensionMismatchError
	var optErr *store.InvalidOptionsError
	switch {
	case errors.As(err, &dimErr):
		return fiber.StatusUnprocessableEntity, "dimension_mismatch"
	case errors.Is(err, store.ErrInvalidQueryShape):
		return fiber.StatusBadRequest, "invalid_query_shape"
	case errors.As(err, &optErr):
		return fiber.StatusBadRequest, "invalid_options"
	case errors.Is(err, store.ErrEmptyCatalog):
		return fiber.StatusServiceUnavailable, "empty_catalog"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout, "canceled"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}
