package http

import (
	"encoding/json"

	"github.com/rupamthxt/lookalike/internal/store"
)

// MatchOptions are the per-request overrides shared by single and batch matches.
type MatchOptions struct {
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
	ScoreMode string   `json:"score_mode"`
}

type MatchRequest struct {
	Embedding json.RawMessage `json:"embedding"`
	MatchOptions
}

type BatchMatchRequest struct {
	Embeddings []json.RawMessage `json:"embeddings"`
	MatchOptions
}

type MatchResponse struct {
	Candidates []CandidateResult `json:"candidates"`
	Top        *CandidateResult  `json:"top"`
	Unknown    bool              `json:"unknown"`
}

type BatchMatchResponse struct {
	Results []MatchResponse `json:"results"`
}

// CandidateResult reports score as an integer percent or as the raw cosine,
// depending on the score mode.
type CandidateResult struct {
	Character store.Character `json:"character"`
	Cosine    float64         `json:"cosine"`
	Score     any             `json:"score"`
}

type CatalogResponse struct {
	Rows      int    `json:"rows"`
	Dimension int    `json:"dimension"`
	Checksum  string `json:"checksum"`
	Source    string `json:"source"`
}

type ReloadRequest struct {
	Source   string `json:"source"`
	Checksum string `json:"checksum"`
}

type ReloadResponse struct {
	Status   string `json:"status"`
	Rows     int    `json:"rows"`
	Checksum string `json:"checksum"`
}

// JoinRequest asks the leader to add a node to the raft configuration.
type JoinRequest struct {
	NodeID   string `json:"node_id"`
	RaftAddr string `json:"raft_addr"`
}

type JoinResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewMatchResponse maps an engine result onto the wire format, reporting
// scores according to mode.
func NewMatchResponse(res *store.MatchResult, mode store.ScoreMode) MatchResponse {
	out := MatchResponse{
		Candidates: make([]CandidateResult, len(res.Candidates)),
		Unknown:    res.Unknown,
	}
	for i, c := range res.Candidates {
		out.Candidates[i] = toCandidateResult(c, mode)
	}
	if res.Top != nil {
		top := toCandidateResult(*res.Top, mode)
		out.Top = &top
	}
	return out
}

func toCandidateResult(c store.Candidate, mode store.ScoreMode) CandidateResult {
	var score any = c.Score
	if mode == store.ScoreCosine {
		score = c.Cosine
	}
	return CandidateResult{Character: c.Character, Cosine: c.Cosine, Score: score}
}
