package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/domain"
)

// setupTestIndex creates an in-memory search index for testing.
func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func app(id, categoryID, name, description string) domain.App {
	return domain.App{
		ID:          id,
		CategoryID:  categoryID,
		Name:        name,
		Description: description,
		URL:         "https://" + id + ".example.com",
		Icon:        "icon-" + id,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
	}
}

func seed(t *testing.T, index *SearchIndex) {
	t.Helper()
	require.NoError(t, index.IndexDocuments([]*AppDocument{
		AppToDocument("alice", app("app-gh", "cat-dev", "GitHub", "Code hosting")),
		AppToDocument("alice", app("app-gl", "cat-dev", "GitLab", "Self-hosted git")),
		AppToDocument("alice", app("app-cafe", "cat-food", "Café Finder", "Coffee nearby")),
		AppToDocument("alice", app("app-mail", "cat-mail", "Mail", "Inbox\nand calendar")),
		AppToDocument("bob", app("app-bob-gh", "cat-bob", "GitHub", "Bob's copy")),
	}))
}

func TestNewSearchIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_OnDiskVersioned(t *testing.T) {
	dir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDocument(AppToDocument("alice", app("app-1", "cat", "Jira", ""))))
	require.NoError(t, index.Close())

	version, err := os.ReadFile(filepath.Join(dir, "search.version"))
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(version))

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "same mapping version keeps documents")
	require.NoError(t, reopened.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.version"), []byte("old"), 0o644))
	rebuilt, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer rebuilt.Close()
	count, err = rebuilt.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count, "version change recreates the index")
}

func TestSearchApps_Substring(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "git"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "GitHub", found[0].Name)
	assert.Equal(t, "GitLab", found[1].Name)
}

func TestSearchApps_MatchesDescription(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "HOSTING"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "app-gh", found[0].ID)

	found, err = index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "calendar"})
	require.NoError(t, err)
	require.Len(t, found, 1, "multi-line descriptions are searchable")
	assert.Equal(t, "app-mail", found[0].ID)
}

func TestSearchApps_AccentInsensitive(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "cafe"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Café Finder", found[0].Name)
}

func TestSearchApps_ScopedPerUser(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "bob", Query: "github"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "app-bob-gh", found[0].ID)

	none, err := index.SearchApps(context.Background(), SearchParams{UserID: "carol", Query: "github"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchApps_RestoresStoredFields(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "github"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, app("app-gh", "cat-dev", "GitHub", "Code hosting"), found[0])
}

func TestSearchApps_EmptyQuery(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "   "})
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestSearchApps_WildcardCharactersAreLiteral(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments([]*AppDocument{
		AppToDocument("alice", app("app-1", "cat", "Git*Hub", "")),
		AppToDocument("alice", app("app-2", "cat", "GitXHub", "")),
	}))

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "git*hub"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "app-1", found[0].ID)
}

func TestSearchApps_CategoryFilterAndLimit(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	found, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "i", CategoryID: "cat-dev"})
	require.NoError(t, err)
	for _, a := range found {
		assert.Equal(t, "cat-dev", a.CategoryID)
	}

	limited, err := index.SearchApps(context.Background(), SearchParams{UserID: "alice", Query: "i", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDocumentIDs(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	ids, err := index.UserDocumentIDs(context.Background(), "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app-gh", "app-gl", "app-cafe", "app-mail"}, ids)

	ids, err = index.CategoryDocumentIDs(context.Background(), "alice", "cat-dev")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app-gh", "app-gl"}, ids)

	require.NoError(t, index.DeleteDocuments(ids))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Rebuild())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	require.NoError(t, index.IndexDocument(AppToDocument("alice", app("app-x", "cat", "Notion", ""))))
	require.NoError(t, index.DeleteDocument("app-x"))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
