package domain

import (
	"slices"
	"time"
)

// DefaultRecentLimit is used when a caller asks for recent apps without a limit.
const DefaultRecentLimit = 10

// Favorite marks an app as a favorite of a user. At most one exists per pair.
type Favorite struct {
	UserID    string    `json:"userId"`
	AppID     string    `json:"appId"`
	CreatedAt time.Time `json:"timestamp"`
}

// AccessEntry records one launch of an app. Entries are append-only.
type AccessEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	AppID      string    `json:"appId"`
	AccessedAt time.Time `json:"timestamp"`
}

// RecentApp is an app with the time it was last opened.
type RecentApp struct {
	App
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// AppUsage counts how often an app was opened.
type AppUsage struct {
	App   App `json:"app"`
	Count int `json:"count"`
}

// Statistics summarizes a user's dashboard.
type Statistics struct {
	CategoryCount int        `json:"categoryCount"`
	AppCount      int        `json:"appCount"`
	FavoriteCount int        `json:"favoriteCount"`
	AccessCount   int        `json:"accessCount"`
	TopApps       []AppUsage `json:"topApps"`
}

// DedupeRecent collapses access entries to one per app, keeping the newest,
// ordered most recent first, truncated to limit.
func DedupeRecent(entries []AccessEntry, limit int) []AccessEntry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	latest := make(map[string]AccessEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		prev, seen := latest[e.AppID]
		if !seen {
			order = append(order, e.AppID)
		}
		if !seen || e.AccessedAt.After(prev.AccessedAt) {
			latest[e.AppID] = e
		}
	}

	out := make([]AccessEntry, 0, len(order))
	for _, appID := range order {
		out = append(out, latest[appID])
	}
	slices.SortStableFunc(out, func(a, b AccessEntry) int {
		return b.AccessedAt.Compare(a.AccessedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
