package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL + "/", APIKey: "service-key"})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresURLAndKey(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}

func TestExecute_BuildsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/bms_apps", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "eq.u1", q.Get("user_id"))
		assert.Equal(t, `in.("a,1","b")`, q.Get("id"))
		assert.Equal(t, "created_at.asc,id.asc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))
		assert.Equal(t, "*", q.Get("select"))
		_, _ = io.WriteString(w, `[{"id":"a,1"},{"id":"b"}]`)
	})

	var rows []struct {
		ID string `json:"id"`
	}
	err := c.From("bms_apps").Select("*").
		Eq("user_id", "u1").
		In("id", []string{"a,1", "b"}).
		Order("created_at", true).Order("id", true).
		Limit(5).Offset(10).
		Execute(context.Background(), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a,1", rows[0].ID)
}

func TestUpsert_SetsPreferAndConflictTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "resolution=ignore-duplicates,return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "user_id,app_id", r.URL.Query().Get("on_conflict"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["user_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[]`)
	})

	err := c.From("bms_favorites").OnConflict("user_id,app_id").IgnoreDuplicates().
		Upsert(context.Background(), map[string]any{"user_id": "u1"}, nil)
	require.NoError(t, err)
}

func TestCount_ReadsContentRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "*/42")
	})

	n, err := c.From("bms_apps").Eq("user_id", "u1").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("0-24/3573")
	require.NoError(t, err)
	assert.Equal(t, 3573, n)

	_, err = parseContentRange("0-24/*")
	assert.Error(t, err)
	_, err = parseContentRange("")
	assert.Error(t, err)
}

func TestResponseError_PostgREST(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
	})

	err := c.From("bms_users").Insert(context.Background(), map[string]string{"id": "x"}, nil)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeUniqueViolation, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "duplicate key")
}

func TestAdmin_GetUserNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"msg":"User not found"}`)
	})

	_, err := c.Admin().GetUser(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "User not found")
}

func TestAdmin_AllUsersPages(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = io.WriteString(w, `{"users":[{"id":"u1","email":"a@x.io"},{"id":"u2","email":"b@x.io"}]}`)
		default:
			_, _ = io.WriteString(w, `{"users":[{"id":"u3","email":"c@x.io"}]}`)
		}
	})

	users, err := c.Admin().AllUsers(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, 2, calls)
}

func TestAdmin_SetBanned(t *testing.T) {
	until := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["ban_duration"] == BanForever {
			_, _ = io.WriteString(w, `{"id":"u1","banned_until":"`+until+`"}`)
			return
		}
		assert.Equal(t, "none", body["ban_duration"])
		_, _ = io.WriteString(w, `{"id":"u1","banned_until":null}`)
	})

	u, err := c.Admin().SetBanned(context.Background(), "u1", true)
	require.NoError(t, err)
	assert.True(t, u.Banned(time.Now()))

	u, err = c.Admin().SetBanned(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.False(t, u.Banned(time.Now()))
}

func TestUser_Username(t *testing.T) {
	u := User{UserMetadata: map[string]any{"full_name": "Ada Lovelace"}}
	assert.Equal(t, "Ada Lovelace", u.Username())
	assert.Empty(t, (&User{}).Username())
}
