package store

import (
	"fmt"
	"math"
)

// ScoreMode selects how a candidate's score is reported to callers.
type ScoreMode string

const (
	ScorePercent ScoreMode = "percent"
	ScoreCosine  ScoreMode = "cosine"
)

// ParseScoreMode accepts "percent", "cosine" or "" (percent).
func ParseScoreMode(s string) (ScoreMode, error) {
	switch ScoreMode(s) {
	case "", ScorePercent:
		return ScorePercent, nil
	case ScoreCosine:
		return ScoreCosine, nil
	default:
		return "", &InvalidOptionsError{Field: "score_mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// PercentScore maps a cosine similarity in [-1, 1] onto [0, 100].
func PercentScore(cosine float64) int {
	score := math.Floor((cosine + 1) / 2 * 100)
	return int(math.Max(0, math.Min(100, score)))
}

// classify sets Top and Unknown on r. With no threshold the best candidate is
// always the match; otherwise a best cosine below the threshold yields an
// unknown result that still carries every candidate.
func classify(r *MatchResult, threshold *float64) {
	if len(r.Candidates) == 0 {
		return
	}
	best := &r.Candidates[0]
	if threshold != nil && best.Cosine < *threshold {
		r.Unknown = true
		return
	}
	r.Top = best
}
