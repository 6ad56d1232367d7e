package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/search"
	"github.com/apphub/apphub-server/internal/store"
)

// SearchService keeps the app index in step with the store and answers
// app searches. With a nil index every query goes to the store.
type SearchService struct {
	index  *search.SearchIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service. index may be nil.
func NewSearchService(index *search.SearchIndex, store store.Store, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// SearchRequest holds the parameters of an app search.
type SearchRequest struct {
	Query      string
	CategoryID string
	Limit      int
}

// Enabled reports whether searches are served from the index.
func (s *SearchService) Enabled() bool {
	return s != nil && s.index != nil
}

// SearchApps returns the user's apps whose name or description contains the
// query, case-insensitively. An empty query returns an empty list.
func (s *SearchService) SearchApps(ctx context.Context, userID string, req SearchRequest) ([]domain.App, error) {
	if store.Fold(req.Query) == "" {
		return []domain.App{}, nil
	}

	if s.Enabled() {
		apps, err := s.index.SearchApps(ctx, search.SearchParams{
			UserID:     userID,
			Query:      req.Query,
			CategoryID: req.CategoryID,
			Limit:      req.Limit,
		})
		if err == nil {
			return apps, nil
		}
		s.logger.Warn("search index query failed, falling back to store",
			"user_id", userID,
			"error", err,
		)
	}

	apps, err := s.store.SearchApps(ctx, userID, req.Query)
	if err != nil {
		return nil, mapStoreError(err, "search apps")
	}
	out := make([]domain.App, 0, len(apps))
	for _, a := range apps {
		if req.CategoryID == "" || a.CategoryID == req.CategoryID {
			out = append(out, a)
		}
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// IndexApp adds or replaces one app document. Index failures are logged, not returned:
// the store stays authoritative and a reindex repairs the index.
func (s *SearchService) IndexApp(userID string, app domain.App) {
	if !s.Enabled() {
		return
	}
	if err := s.index.IndexDocument(search.AppToDocument(userID, app)); err != nil {
		s.logger.Warn("failed to index app", "app_id", app.ID, "error", err)
	}
}

// IndexApps adds or replaces a set of app documents in one batch.
func (s *SearchService) IndexApps(userID string, apps []domain.App) {
	if !s.Enabled() || len(apps) == 0 {
		return
	}
	docs := make([]*search.AppDocument, 0, len(apps))
	for _, a := range apps {
		docs = append(docs, search.AppToDocument(userID, a))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		s.logger.Warn("failed to index apps", "user_id", userID, "count", len(docs), "error", err)
	}
}

// RemoveApp deletes one app document.
func (s *SearchService) RemoveApp(appID string) {
	if !s.Enabled() {
		return
	}
	if err := s.index.DeleteDocument(appID); err != nil {
		s.logger.Warn("failed to remove app from index", "app_id", appID, "error", err)
	}
}

// RemoveCategory deletes every indexed app of a category.
func (s *SearchService) RemoveCategory(ctx context.Context, userID, categoryID string) {
	if !s.Enabled() {
		return
	}
	ids, err := s.index.CategoryDocumentIDs(ctx, userID, categoryID)
	if err == nil {
		err = s.index.DeleteDocuments(ids)
	}
	if err != nil {
		s.logger.Warn("failed to remove category from index", "category_id", categoryID, "error", err)
	}
}

// RemoveUser deletes every indexed app of a user.
func (s *SearchService) RemoveUser(ctx context.Context, userID string) {
	if !s.Enabled() {
		return
	}
	ids, err := s.index.UserDocumentIDs(ctx, userID)
	if err == nil {
		err = s.index.DeleteDocuments(ids)
	}
	if err != nil {
		s.logger.Warn("failed to remove user from index", "user_id", userID, "error", err)
	}
}

// ReindexAll rebuilds the index from the store and returns the number of
// indexed apps. Remote backends can change without this server seeing it,
// so the index is rebuilt at startup rather than trusted.
func (s *SearchService) ReindexAll(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	total := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		cats, err := s.store.GetCategories(ctx, u.ID)
		if err != nil {
			return total, fmt.Errorf("list categories of user %s: %w", u.ID, err)
		}

		var docs []*search.AppDocument
		for _, c := range cats {
			for _, a := range c.Apps {
				docs = append(docs, search.AppToDocument(u.ID, a))
			}
		}
		if err := s.index.IndexDocuments(docs); err != nil {
			return total, fmt.Errorf("index apps of user %s: %w", u.ID, err)
		}
		total += len(docs)
	}

	s.logger.Info("search index rebuilt", "users", len(users), "apps", total)
	return total, nil
}

// DocumentCount returns the number of indexed apps.
func (s *SearchService) DocumentCount() (uint64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	return s.index.DocumentCount()
}
