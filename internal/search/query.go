package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// MaxResults caps a single search request.
const MaxResults = 1000

// SearchParams configures an app search.
type SearchParams struct {
	UserID     string // Required; results never cross users
	Query      string // Substring matched against name and description
	CategoryID string // Optional category filter
	Limit      int    // <= 0 or > MaxResults means MaxResults
}

// wildcardUnsafe holds characters the keyword copies cannot carry verbatim
// into a wildcard pattern. They become single-character wildcards and the
// hit is confirmed against the stored text.
var wildcardUnsafe = strings.NewReplacer("*", "?", "\n", "?", "\r", "?", "\t", "?")

// flatten keeps the folded keyword copies on one line for the wildcard regexp.
var flatten = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// SearchApps returns the user's apps whose name or description contains the
// query, compared case- and accent-insensitively, ordered by name.
// An empty query returns no apps.
func (s *SearchIndex) SearchApps(ctx context.Context, params SearchParams) ([]domain.App, error) {
	folded := store.Fold(params.Query)
	if folded == "" || params.UserID == "" {
		return []domain.App{}, nil
	}
	limit := params.Limit
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	pattern := "*" + wildcardUnsafe.Replace(folded) + "*"
	nameQ := bleve.NewWildcardQuery(pattern)
	nameQ.SetField("name_folded")
	descQ := bleve.NewWildcardQuery(pattern)
	descQ.SetField("description_folded")

	filters := []query.Query{userFilter(params.UserID), bleve.NewDisjunctionQuery(nameQ, descQ)}
	if params.CategoryID != "" {
		catQ := bleve.NewTermQuery(params.CategoryID)
		catQ.SetField("category_id")
		filters = append(filters, catQ)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(filters...), limit, 0, false)
	req.SortBy([]string{"name_folded", "_id"})
	req.Fields = []string{"user_id", "category_id", "name", "description", "icon", "url", "created_at"}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := make([]domain.App, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := AppDocument{ID: hit.ID}
		doc.UserID, _ = hit.Fields["user_id"].(string)
		doc.CategoryID, _ = hit.Fields["category_id"].(string)
		doc.Name, _ = hit.Fields["name"].(string)
		doc.Description, _ = hit.Fields["description"].(string)
		doc.Icon, _ = hit.Fields["icon"].(string)
		doc.URL, _ = hit.Fields["url"].(string)
		if ms, ok := hit.Fields["created_at"].(float64); ok {
			doc.CreatedAt = int64(ms)
		}
		if doc.UserID != params.UserID || !store.MatchesQuery(params.Query, doc.Name, doc.Description) {
			continue
		}
		out = append(out, doc.ToApp())
	}

	slices.SortStableFunc(out, func(a, b domain.App) int {
		return cmp.Or(cmp.Compare(store.Fold(a.Name), store.Fold(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// UserDocumentIDs lists the ids of every document owned by userID.
func (s *SearchIndex) UserDocumentIDs(ctx context.Context, userID string) ([]string, error) {
	return s.matchingIDs(ctx, userFilter(userID))
}

// CategoryDocumentIDs lists the ids of the user's apps in one category.
func (s *SearchIndex) CategoryDocumentIDs(ctx context.Context, userID, categoryID string) ([]string, error) {
	catQ := bleve.NewTermQuery(categoryID)
	catQ.SetField("category_id")
	return s.matchingIDs(ctx, bleve.NewConjunctionQuery(userFilter(userID), catQ))
}

func (s *SearchIndex) matchingIDs(ctx context.Context, q query.Query) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for from := 0; ; from += MaxResults {
		req := bleve.NewSearchRequestOptions(q, MaxResults, from, false)
		req.SortBy([]string{"_id"})
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < MaxResults {
			return ids, nil
		}
	}
}

func userFilter(userID string) query.Query {
	q := bleve.NewTermQuery(userID)
	q.SetField("user_id")
	return q
}
