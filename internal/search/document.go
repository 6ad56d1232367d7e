// Package search provides full-text search over dashboard apps using Bleve.
// Every document carries its owner's user id and queries always filter on it.
package search

import (
	"time"

	"github.com/apphub/apphub-server/internal/domain"
	"github.com/apphub/apphub-server/internal/store"
)

// AppDocument is the indexed form of a domain.App.
//
// Name and description are indexed twice: analyzed for relevance, and
// folded into keyword fields for substring matching.
type AppDocument struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	URL         string `json:"url"`
	CreatedAt   int64  `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *AppDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":          d.ID,
		"user_id":     d.UserID,
		"category_id": d.CategoryID,
		"name":        d.Name,
		"name_folded": flatten.Replace(store.Fold(d.Name)),
		"url":         d.URL,
		"created_at":  d.CreatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
		m["description_folded"] = flatten.Replace(store.Fold(d.Description))
	}
	if d.Icon != "" {
		m["icon"] = d.Icon
	}
	return m
}

// ToApp rebuilds the domain app from stored fields.
func (d *AppDocument) ToApp() domain.App {
	return domain.App{
		ID:          d.ID,
		CategoryID:  d.CategoryID,
		Name:        d.Name,
		Icon:        d.Icon,
		URL:         d.URL,
		Description: d.Description,
		CreatedAt:   time.UnixMilli(d.CreatedAt).UTC(),
	}
}

// AppToDocument converts an app owned by userID.
func AppToDocument(userID string, app domain.App) *AppDocument {
	return &AppDocument{
		ID:          app.ID,
		UserID:      userID,
		CategoryID:  app.CategoryID,
		Name:        app.Name,
		Description: app.Description,
		Icon:        app.Icon,
		URL:         app.URL,
		CreatedAt:   app.CreatedAt.UnixMilli(),
	}
}
