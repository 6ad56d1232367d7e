// Package supabase is a small client for the Supabase REST surface the server
// needs: PostgREST table access and the GoTrue admin user API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a Supabase REST API client authenticated with a service-role key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse supabase URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// QueryBuilder builds PostgREST requests. Filters apply to reads, updates and deletes.
type QueryBuilder struct {
	client     *Client
	table      string
	columns    string
	filters    url.Values
	orders     []string
	limit      int
	offset     int
	onConflict string
	ignoreDups bool
}

func (q *QueryBuilder) filter(column, op string, value any) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, fmt.Sprintf("%s.%v", op, value))
	return q
}

// Select specifies columns to select, including embedded resources.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.filter(column, "eq", value)
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return q.filter(column, "lt", value)
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return q.filter(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Or adds a disjunction of PostgREST conditions such as "name.ilike.*git*".
func (q *QueryBuilder) Or(conditions ...string) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add("or", "("+strings.Join(conditions, ",")+")")
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset skips the first n rows; pair it with Order for stable paging.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// OnConflict names the unique columns an upsert resolves against.
func (q *QueryBuilder) OnConflict(columns string) *QueryBuilder {
	q.onConflict = columns
	return q
}

// IgnoreDuplicates makes an upsert keep existing rows instead of merging.
func (q *QueryBuilder) IgnoreDuplicates() *QueryBuilder {
	q.ignoreDups = true
	return q
}

func (q *QueryBuilder) url(withSelect bool) string {
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if withSelect && q.columns != "" {
		params.Set("select", q.columns)
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}
	if q.onConflict != "" {
		params.Set("on_conflict", q.onConflict)
	}

	reqURL := q.client.baseURL + "/rest/v1/" + q.table
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Execute runs a SELECT and decodes the rows into dest when it is non-nil.
func (q *QueryBuilder) Execute(ctx context.Context, dest any) error {
	req, err := q.client.newRequest(ctx, http.MethodGet, q.url(true), nil)
	if err != nil {
		return err
	}
	return q.client.doJSON(req, dest)
}

// Count runs a HEAD request and returns the exact number of matching rows.
func (q *QueryBuilder) Count(ctx context.Context) (int, error) {
	req, err := q.client.newRequest(ctx, http.MethodHead, q.url(false), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := q.client.do(req)
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// Insert inserts one row or a slice of rows and decodes the stored rows into dest.
func (q *QueryBuilder) Insert(ctx context.Context, data, dest any) error {
	return q.write(ctx, http.MethodPost, "return=representation", data, dest)
}

// Upsert inserts rows, resolving conflicts on OnConflict columns.
func (q *QueryBuilder) Upsert(ctx context.Context, data, dest any) error {
	resolution := "resolution=merge-duplicates"
	if q.ignoreDups {
		resolution = "resolution=ignore-duplicates"
	}
	return q.write(ctx, http.MethodPost, resolution+",return=representation", data, dest)
}

// Update patches the filtered rows and decodes the updated rows into dest.
func (q *QueryBuilder) Update(ctx context.Context, data, dest any) error {
	return q.write(ctx, http.MethodPatch, "return=representation", data, dest)
}

// Delete removes the filtered rows and decodes the removed rows into dest.
func (q *QueryBuilder) Delete(ctx context.Context, dest any) error {
	req, err := q.client.newRequest(ctx, http.MethodDelete, q.url(true), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.doJSON(req, dest)
}

func (q *QueryBuilder) write(ctx context.Context, method, prefer string, data, dest any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", q.table, err)
	}

	req, err := q.client.newRequest(ctx, method, q.url(true), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return q.client.doJSON(req, dest)
}

// Quote wraps a filter value in double quotes so PostgREST reserved
// characters such as commas and parentheses are taken literally.
func Quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// parseContentRange reads the total from a header such as "0-24/3573" or "*/0".
func parseContentRange(h string) (int, error) {
	slash := strings.LastIndexByte(h, '/')
	if slash < 0 || h[slash+1:] == "*" {
		return 0, fmt.Errorf("content-range %q carries no total", h)
	}
	n, err := strconv.Atoi(h[slash+1:])
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", h, err)
	}
	return n, nil
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// APIError is a failed PostgREST or GoTrue call.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Message)
}

// PostgreSQL and PostgREST codes the store maps to its own errors.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// Error returns an *APIError when the response indicates failure.
func (r *Response) Error() error {
	if r.StatusCode < 400 {
		return nil
	}

	var body struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
		Error   string          `json:"error"`
		Desc    string          `json:"error_description"`
	}
	apiErr := &APIError{StatusCode: r.StatusCode}
	if err := json.Unmarshal(r.Body, &body); err == nil {
		// PostgREST sends a string code; GoTrue sends the HTTP status as a number.
		var code string
		if json.Unmarshal(body.Code, &code) == nil {
			apiErr.Code = code
		}
		for _, m := range []string{body.Message, body.Msg, body.Desc, body.Error} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(r.StatusCode)
	}
	return apiErr
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	r := &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}
	if err := r.Error(); err != nil {
		return r, err
	}
	return r, nil
}

func (c *Client) doJSON(req *http.Request, dest any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if dest == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
