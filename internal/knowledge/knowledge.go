// Package knowledge provides vector-free similarity retrieval over the
// medical knowledge base for response grounding.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
	"github.com/sean-bit813/medical-LLM-system/internal/store"
)

// Searcher is the retrieval interface consumed by the dialogue manager.
type Searcher interface {
	// Search returns up to k documents relevant to the query, best first.
	// Documents scoring below threshold (0..1) are dropped.
	Search(ctx context.Context, query string, k int, threshold float64) ([]models.KnowledgeDoc, error)
}

// StoreSearcher ranks knowledge documents from a Store by token overlap with
// the query. Department and title tokens count toward the score so short
// category queries still match.
type StoreSearcher struct {
	store store.Store
}

// NewStoreSearcher creates a Searcher over the given store.
func NewStoreSearcher(st store.Store) *StoreSearcher {
	return &StoreSearcher{store: st}
}

// Search implements Searcher.
func (s *StoreSearcher) Search(ctx context.Context, query string, k int, threshold float64) ([]models.KnowledgeDoc, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	docs, err := s.store.AllKnowledgeDocs()
	if err != nil {
		slog.Error("Knowledge search store read failed", "error", err)
		return nil, fmt.Errorf("failed to load knowledge docs: %w", err)
	}

	var scored []models.KnowledgeDoc
	for _, d := range docs {
		docTokens := tokenize(d.Department + " " + d.Title + " " + d.Text)
		score := overlapScore(queryTokens, docTokens)
		if score < threshold || score == 0 {
			continue
		}
		d.Score = score
		scored = append(scored, d)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}

	slog.Debug("Knowledge search completed", "query_tokens", len(queryTokens), "candidates", len(docs), "results", len(scored))
	return scored, nil
}

// tokenize lowercases and splits on non-letter/digit runes. CJK text has no
// word boundaries, so runs of Han characters are additionally split into
// single-rune tokens.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if isHan(word) {
			for _, r := range word {
				tokens[string(r)] = true
			}
			continue
		}
		tokens[word] = true
	}
	return tokens
}

func isHan(word string) bool {
	for _, r := range word {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// overlapScore is the fraction of query tokens present in the document.
func overlapScore(query, doc map[string]bool) float64 {
	matched := 0
	for tok := range query {
		if doc[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
