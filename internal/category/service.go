package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/transaction"
)

const defaultSuggestions = 5

// snapshot is one immutable view of the category set. The engine swaps the
// whole snapshot on reload so concurrent Categorize calls never observe a
// half-updated cache.
type snapshot struct {
	ordered   []*Category
	byName    map[string]*Category
	keywords  map[uuid.UUID][]string
	unknownID uuid.UUID
}

// Engine resolves categories for transactions through a layered strategy:
// vendor enrichment hints first, then keyword matching, then the Unknown
// fallback. It keeps an in-memory cache of all categories; mutations reload
// the cache synchronously before returning.
type Engine struct {
	repo  Repository
	cache atomic.Pointer[snapshot]
}

// NewEngine builds an engine and performs the initial cache load, creating
// the Unknown category if it does not exist yet.
func NewEngine(ctx context.Context, repo Repository) (*Engine, error) {
	e := &Engine{repo: repo}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

// Reload rebuilds the category cache from storage. It guarantees the
// Unknown category exists before the new snapshot is published.
func (e *Engine) Reload(ctx context.Context) error {
	categories, err := e.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}

	snap := &snapshot{
		ordered:  categories,
		byName:   make(map[string]*Category, len(categories)+1),
		keywords: make(map[uuid.UUID][]string, len(categories)),
	}

	for _, c := range categories {
		snap.byName[c.Name] = c

		normalized := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if n := normalizeText(kw); n != "" {
				normalized = append(normalized, n)
			}
		}

		snap.keywords[c.ID] = normalized
	}

	unknown, ok := snap.byName[UnknownName]
	if !ok {
		unknown = &Category{ID: uuid.New(), Name: UnknownName}
		if err := e.repo.CreateCategory(ctx, unknown); err != nil {
			return fmt.Errorf("creating fallback category: %w", err)
		}

		snap.ordered = append(snap.ordered, unknown)
		snap.byName[UnknownName] = unknown
	}

	snap.unknownID = unknown.ID
	e.cache.Store(snap)

	return nil
}

// UnknownID returns the id of the terminal fallback category.
func (e *Engine) UnknownID() uuid.UUID {
	return e.cache.Load().unknownID
}

// Categories returns the cached category set in stored order. The slice is
// the caller's to keep; the cached snapshot stays untouched.
func (e *Engine) Categories() []*Category {
	return slices.Clone(e.cache.Load().ordered)
}

// Categorize resolves a category id for the transaction. It is total: any
// transaction resolves to at least the Unknown category.
func (e *Engine) Categorize(tx *transaction.Transaction) uuid.UUID {
	snap := e.cache.Load()

	if id, ok := e.categorizeByHint(snap, tx); ok {
		return id
	}

	if id, ok := categorizeByKeyword(snap, tx.Description); ok {
		return id
	}

	return snap.unknownID
}

// categorizeByHint resolves the vendor enrichment hint, if any, through the
// static per-kind tables. A table hit whose candidates all name categories
// missing from the cache is logged and treated as a miss.
func (e *Engine) categorizeByHint(snap *snapshot, tx *transaction.Transaction) (uuid.UUID, bool) {
	hint, ok := tx.Enrichment.CategoryHint()
	if !ok {
		return uuid.Nil, false
	}

	candidates := hintCandidates(tx.Enrichment.Kind, hint)
	if len(candidates) == 0 {
		return uuid.Nil, false
	}

	for _, name := range candidates {
		if c, ok := snap.byName[name]; ok {
			return c.ID, true
		}
	}

	slog.Warn("vendor hint resolved to no existing category",
		"kind", tx.Enrichment.Kind, "hint", hint, "candidates", candidates)

	return uuid.Nil, false
}

func hintCandidates(kind transaction.SourceKind, hint string) []string {
	switch kind {
	case transaction.SourceCardSector:
		return sectorCategories[hint]
	case transaction.SourceCardCoded:
		return codeCategories[hint]
	}

	return nil
}

// categorizeByKeyword tests the normalized description for substring
// containment against every keyword of every non-Unknown category in stored
// order. First match wins; no best-match scoring.
func categorizeByKeyword(snap *snapshot, description string) (uuid.UUID, bool) {
	normalized := normalizeText(description)
	if normalized == "" {
		return uuid.Nil, false
	}

	for _, c := range snap.ordered {
		if c.Name == UnknownName {
			continue
		}

		for _, kw := range snap.keywords[c.ID] {
			if strings.Contains(normalized, kw) {
				return c.ID, true
			}
		}
	}

	return uuid.Nil, false
}

// Suggestion is an advisory category match for a description.
type Suggestion struct {
	CategoryID uuid.UUID
	Name       string
	Score      float64
}

// Suggest scores every category by the fraction of its keyword tokens found
// in the description (whitespace-tokenized overlap, clipped to 1.0) and
// returns the topN best, descending. Advisory only; Categorize does not use
// it.
func (e *Engine) Suggest(description string, topN int) []Suggestion {
	if topN <= 0 {
		topN = defaultSuggestions
	}

	snap := e.cache.Load()

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(normalizeText(description)) {
		tokens[tok] = struct{}{}
	}

	var suggestions []Suggestion

	for _, c := range snap.ordered {
		score := keywordOverlap(snap.keywords[c.ID], tokens)
		if score <= 0 {
			continue
		}

		suggestions = append(suggestions, Suggestion{CategoryID: c.ID, Name: c.Name, Score: score})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if len(suggestions) > topN {
		suggestions = suggestions[:topN]
	}

	return suggestions
}

func keywordOverlap(keywords []string, tokens map[string]struct{}) float64 {
	total := 0
	matched := 0

	for _, kw := range keywords {
		for _, tok := range strings.Fields(kw) {
			total++

			if _, ok := tokens[tok]; ok {
				matched++
			}
		}
	}

	if total == 0 {
		return 0
	}

	score := float64(matched) / float64(total)
	if score > 1 {
		score = 1
	}

	return score
}

// Add creates a category and reloads the cache before returning.
func (e *Engine) Add(ctx context.Context, name string, parentID *uuid.UUID, keywords []string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("category name is required")
	}

	c := &Category{
		ID:       uuid.New(),
		Name:     name,
		ParentID: parentID,
		Keywords: keywords,
	}

	if err := e.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	if err := e.Reload(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// UpdateKeywords replaces a category's keyword list and reloads the cache
// before returning. Last writer wins.
func (e *Engine) UpdateKeywords(ctx context.Context, id uuid.UUID, keywords []string) error {
	if err := e.repo.UpdateKeywords(ctx, id, keywords); err != nil {
		return fmt.Errorf("updating keywords: %w", err)
	}

	return e.Reload(ctx)
}

// descriptions are bilingual Hebrew/Latin; keep both scripts plus digits
// and whitespace, drop everything else.
var textCleaner = regexp.MustCompile(`[^a-z0-9\s\x{0590}-\x{05FF}]+`)

func normalizeText(s string) string {
	return strings.TrimSpace(textCleaner.ReplaceAllString(strings.ToLower(s), ""))
}
