package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	vectorHttp "github.com/rupamthxt/lookalike/internal/http"
	"github.com/rupamthxt/lookalike/internal/store"
	"github.com/spf13/cobra"
)

func newMatchCmd() *cobra.Command {
	var (
		queryPath  string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match one query embedding against the catalog and print the candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scoreMode, err := store.ParseScoreMode(cfg.Matching.ScoreMode)
			if err != nil {
				return err
			}

			query, err := readQuery(queryPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			src, err := sourceResolver(cfg)(cmd.Context(), cfg.Catalog.Path)
			if err != nil {
				return err
			}
			cat, err := store.LoadSource(cmd.Context(), src, cfg.Matching.ExpectedDimension)
			if err != nil {
				return err
			}
			engine, err := store.NewEngine(cat, store.MatchOptions{
				TopK:      cfg.Matching.TopK,
				Threshold: cfg.Matching.Threshold,
			})
			if err != nil {
				return err
			}

			res, err := engine.Match(query, store.MatchOptions{})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res, scoreMode)
			}
			printResult(cmd.OutOrStdout(), res, scoreMode)
			return nil
		},
	}
	addMatchingFlags(cmd)
	cmd.Flags().StringVarP(&queryPath, "query", "q", "-", "File holding the query embedding as a JSON array (- for stdin)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON, in the same shape as POST /api/v1/match")
	return cmd
}

func readQuery(path string, stdin io.Reader) ([]float32, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	return store.ParseQuery(raw)
}

func writeJSON(w io.Writer, res *store.MatchResult, mode store.ScoreMode) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(vectorHttp.NewMatchResponse(res, mode))
}

func printResult(w io.Writer, res *store.MatchResult, mode store.ScoreMode) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	for i, c := range res.Candidates {
		score := fmt.Sprintf("%3d%%", c.Score)
		if mode == store.ScoreCosine {
			score = fmt.Sprintf("%.4f", c.Cosine)
		}
		line := fmt.Sprintf("%d. %-28s id=%-6s score=%s cosine=%.4f", i+1, c.Character.Name(), c.Character.ID(), score, c.Cosine)
		if i == 0 && res.Top != nil {
			green.Fprintln(w, line)
		} else {
			gray.Fprintln(w, line)
		}
	}
	if res.Unknown {
		yellow.Fprintln(w, "No confident match: best candidate is below the threshold.")
	}
}
