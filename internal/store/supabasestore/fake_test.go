package supabasestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apphub/apphub-server/internal/supabase"
)

// fakeSupabase is an in-memory stand-in for PostgREST and the GoTrue admin
// API. It understands the subset of filters the store sends and enforces
// the primary keys and cascading foreign keys of the bms_* schema.
type fakeSupabase struct {
	mu       sync.Mutex
	tables   map[string][]row
	users    []supabase.User
	requests []string
}

type row = map[string]any

var primaryKeys = map[string][]string{
	tableCategories: {"id"},
	tableApps:       {"id"},
	tableFavorites:  {"user_id", "app_id"},
	tableHistory:    {"id"},
	tableConfig:     {"id"},
	tableRoles:      {"user_id"},
}

// foreignKeys maps child table to (column, parent table). Deletes cascade.
var foreignKeys = map[string][2]string{
	tableApps:      {"category_id", tableCategories},
	tableFavorites: {"app_id", tableApps},
	tableHistory:   {"app_id", tableApps},
}

func newFakeSupabase(t *testing.T) (*fakeSupabase, *supabase.Client) {
	t.Helper()
	f := &fakeSupabase{tables: make(map[string][]row)}
	for table := range primaryKeys {
		f.tables[table] = nil
	}

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "service-key"})
	require.NoError(t, err)
	return f, c
}

func (f *fakeSupabase) addUser(id, email string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, supabase.User{ID: id, Email: email, CreatedAt: createdAt})
}

func (f *fakeSupabase) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		f.serveTable(w, r, strings.TrimPrefix(r.URL.Path, "/rest/v1/"))
	case strings.HasPrefix(r.URL.Path, "/auth/v1/admin/users"):
		f.serveAdmin(w, r, strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users"), "/"))
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pgError(w http.ResponseWriter, code, msg string) {
	writeJSON(w, http.StatusConflict, map[string]string{"code": code, "message": msg})
}

func (f *fakeSupabase) serveTable(w http.ResponseWriter, r *http.Request, table string) {
	if _, ok := f.tables[table]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "42P01", "message": "relation does not exist"})
		return
	}
	query := r.URL.Query()

	switch r.Method {
	case http.MethodGet:
		rows := f.embed(table, query.Get("select"), f.sorted(f.matching(table, query), query))
		if n, err := strconv.Atoi(query.Get("offset")); err == nil {
			rows = rows[min(n, len(rows)):]
		}
		if n, err := strconv.Atoi(query.Get("limit")); err == nil && n < len(rows) {
			rows = rows[:n]
		}
		writeJSON(w, http.StatusOK, nonNil(rows))

	case http.MethodHead:
		w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(f.matching(table, query))))
		w.WriteHeader(http.StatusOK)

	case http.MethodPost:
		body, err := decodeRows(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		f.insert(w, table, body, query.Get("on_conflict"), r.Header.Get("Prefer"))

	case http.MethodPatch:
		body, err := decodeRows(r)
		if err != nil || len(body) != 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "patch needs one object"})
			return
		}
		updated := f.matching(table, query)
		for _, existing := range updated {
			for k, v := range body[0] {
				existing[k] = v
			}
		}
		writeJSON(w, http.StatusOK, nonNil(updated))

	case http.MethodDelete:
		writeJSON(w, http.StatusOK, nonNil(f.delete(table, f.matching(table, query))))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) insert(w http.ResponseWriter, table string, rows []row, onConflict, prefer string) {
	keys := primaryKeys[table]
	if onConflict != "" {
		keys = strings.Split(onConflict, ",")
	}

	if fk, ok := foreignKeys[table]; ok {
		for _, nr := range rows {
			if f.find(fk[1], map[string]string{"id": str(nr[fk[0]])}) == nil {
				pgError(w, supabase.CodeForeignKeyViolation, "insert or update violates foreign key constraint")
				return
			}
		}
	}

	var written []row
	for _, nr := range rows {
		match := make(map[string]string, len(keys))
		for _, k := range keys {
			match[k] = str(nr[k])
		}
		existing := f.find(table, match)
		switch {
		case existing == nil:
			f.tables[table] = append(f.tables[table], nr)
			written = append(written, nr)
		case strings.Contains(prefer, "resolution=ignore-duplicates"):
		case strings.Contains(prefer, "resolution=merge-duplicates"):
			for k, v := range nr {
				existing[k] = v
			}
			written = append(written, existing)
		default:
			pgError(w, supabase.CodeUniqueViolation, "duplicate key value violates unique constraint")
			return
		}
	}
	writeJSON(w, http.StatusCreated, nonNil(written))
}

func (f *fakeSupabase) delete(table string, victims []row) []row {
	var kept []row
	var ids []string
	for _, existing := range f.tables[table] {
		if slices.ContainsFunc(victims, func(v row) bool { return sameRow(v, existing) }) {
			ids = append(ids, str(existing["id"]))
			continue
		}
		kept = append(kept, existing)
	}
	f.tables[table] = kept

	for child, fk := range foreignKeys {
		if fk[1] != table {
			continue
		}
		var orphans []row
		for _, c := range f.tables[child] {
			if slices.Contains(ids, str(c[fk[0]])) {
				orphans = append(orphans, c)
			}
		}
		f.delete(child, orphans)
	}
	return victims
}

func sameRow(a, b row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if str(b[k]) != str(v) {
			return false
		}
	}
	return true
}

func (f *fakeSupabase) find(table string, eq map[string]string) row {
	for _, existing := range f.tables[table] {
		ok := true
		for k, v := range eq {
			if str(existing[k]) != v {
				ok = false
				break
			}
		}
		if ok {
			return existing
		}
	}
	return nil
}

// matching returns the live rows that satisfy every filter in query.
func (f *fakeSupabase) matching(table string, query map[string][]string) []row {
	var out []row
	for _, existing := range f.tables[table] {
		if rowMatches(existing, query) {
			out = append(out, existing)
		}
	}
	return out
}

func rowMatches(r row, query map[string][]string) bool {
	for col, values := range query {
		switch col {
		case "select", "order", "limit", "offset", "on_conflict":
			continue
		case "or":
			for _, v := range values {
				conds := splitTop(strings.TrimSuffix(strings.TrimPrefix(v, "("), ")"))
				if !slices.ContainsFunc(conds, func(c string) bool {
					column, rest, _ := strings.Cut(c, ".")
					op, val, _ := strings.Cut(rest, ".")
					return condition(r[column], op, unquote(val))
				}) {
					return false
				}
			}
		default:
			for _, v := range values {
				op, val, _ := strings.Cut(v, ".")
				if !condition(r[col], op, val) {
					return false
				}
			}
		}
	}
	return true
}

func condition(field any, op, val string) bool {
	s := str(field)
	switch op {
	case "eq":
		return s == val
	case "lt":
		a, errA := strconv.ParseFloat(s, 64)
		b, errB := strconv.ParseFloat(val, 64)
		return errA == nil && errB == nil && a < b
	case "in":
		for _, item := range splitTop(strings.TrimSuffix(strings.TrimPrefix(val, "("), ")")) {
			if unquote(item) == s {
				return true
			}
		}
		return false
	case "ilike":
		parts := strings.Split(unquote(val), "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		return regexp.MustCompile("(?is)^" + strings.Join(parts, ".*") + "$").MatchString(s)
	default:
		panic("fake supabase: unsupported operator " + op)
	}
}

// splitTop splits on commas outside double quotes, keeping the quotes.
func splitTop(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes, escaped := false, false
	for _, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inQuotes:
			escaped = true
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(ch)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s[1 : len(s)-1])
}

func (f *fakeSupabase) sorted(rows []row, query map[string][]string) []row {
	order := ""
	if v := query["order"]; len(v) > 0 {
		order = v[0]
	}
	if order == "" {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b row) int {
		for _, term := range strings.Split(order, ",") {
			col, dir, _ := strings.Cut(term, ".")
			c := compareValues(a[col], b[col])
			if dir == "desc" {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

func compareValues(a, b any) int {
	x, errX := strconv.ParseFloat(str(a), 64)
	y, errY := strconv.ParseFloat(str(b), 64)
	if errX == nil && errY == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(str(a), str(b))
}

// embed resolves "alias:bms_apps(*)" in the select list through app_id.
func (f *fakeSupabase) embed(table, sel string, rows []row) []row {
	alias, _, ok := strings.Cut(sel, ":"+tableApps+"(*)")
	if !ok || table != tableFavorites {
		return rows
	}
	if i := strings.LastIndexByte(alias, ','); i >= 0 {
		alias = alias[i+1:]
	}

	out := make([]row, 0, len(rows))
	for _, r := range rows {
		withApp := make(row, len(r)+1)
		for k, v := range r {
			withApp[k] = v
		}
		withApp[alias] = f.find(tableApps, map[string]string{"id": str(r["app_id"])})
		out = append(out, withApp)
	}
	return out
}

func (f *fakeSupabase) serveAdmin(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := min((page-1)*perPage, len(f.users))
		end := min(start+perPage, len(f.users))
		writeJSON(w, http.StatusOK, map[string]any{"users": f.users[start:end]})
		return
	}

	idx := slices.IndexFunc(f.users, func(u supabase.User) bool { return u.ID == id })
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "msg": "User not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, f.users[idx])
	case http.MethodPut:
		var body struct {
			BanDuration string `json:"ban_duration"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.BanDuration {
		case "none":
			f.users[idx].BannedUntil = nil
		default:
			d, err := time.ParseDuration(body.BanDuration)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid ban_duration"})
				return
			}
			until := time.Now().Add(d)
			f.users[idx].BannedUntil = &until
		}
		writeJSON(w, http.StatusOK, f.users[idx])
	case http.MethodDelete:
		f.users = slices.Delete(f.users, idx, idx+1)
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func decodeRows(r *http.Request) ([]row, error) {
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Bytes()))
	dec.UseNumber()

	trimmed := bytes.TrimSpace(raw.Bytes())
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []row
		return rows, dec.Decode(&rows)
	}
	var one row
	if err := dec.Decode(&one); err != nil {
		return nil, err
	}
	return []row{one}, nil
}

func str(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func nonNil(rows []row) []row {
	if rows == nil {
		return []row{}
	}
	return rows
}
