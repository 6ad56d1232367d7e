package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BanForever is the GoTrue ban duration used to disable an account.
const BanForever = "876000h"

// banNone lifts a ban.
const banNone = "none"

// User is a GoTrue user as returned by the admin API.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    time.Time      `json:"created_at"`
	BannedUntil  *time.Time     `json:"banned_until,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Banned reports whether the user is banned at now.
func (u *User) Banned(now time.Time) bool {
	return u.BannedUntil != nil && u.BannedUntil.After(now)
}

// Username returns the display name stored in user metadata, if any.
func (u *User) Username() string {
	for _, key := range []string{"username", "name", "full_name"} {
		if s, ok := u.UserMetadata[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Admin returns the GoTrue admin API.
func (c *Client) Admin() *AdminClient {
	return &AdminClient{client: c}
}

// AdminClient calls /auth/v1/admin. It requires the service-role key.
type AdminClient struct {
	client *Client
}

// ListUsers returns one page of users. Pages start at 1.
func (a *AdminClient) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	req, err := a.client.newRequest(ctx, http.MethodGet,
		a.client.baseURL+"/auth/v1/admin/users?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Users []User `json:"users"`
	}
	if err := a.client.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// AllUsers pages through every user.
func (a *AdminClient) AllUsers(ctx context.Context, perPage int) ([]User, error) {
	var all []User
	for page := 1; ; page++ {
		users, err := a.ListUsers(ctx, page, perPage)
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
		if len(users) < perPage {
			return all, nil
		}
	}
}

// GetUser fetches one user by id.
func (a *AdminClient) GetUser(ctx context.Context, id string) (*User, error) {
	req, err := a.client.newRequest(ctx, http.MethodGet, a.userURL(id), nil)
	if err != nil {
		return nil, err
	}
	var u User
	if err := a.client.doJSON(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetBanned bans the user indefinitely or lifts the ban.
func (a *AdminClient) SetBanned(ctx context.Context, id string, banned bool) (*User, error) {
	duration := banNone
	if banned {
		duration = BanForever
	}
	body, err := json.Marshal(map[string]string{"ban_duration": duration})
	if err != nil {
		return nil, fmt.Errorf("marshal ban: %w", err)
	}

	req, err := a.client.newRequest(ctx, http.MethodPut, a.userURL(id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var u User
	if err := a.client.doJSON(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the user from GoTrue.
func (a *AdminClient) DeleteUser(ctx context.Context, id string) error {
	req, err := a.client.newRequest(ctx, http.MethodDelete, a.userURL(id), nil)
	if err != nil {
		return err
	}
	_, err = a.client.do(req)
	return err
}

func (a *AdminClient) userURL(id string) string {
	return a.client.baseURL + "/auth/v1/admin/users/" + url.PathEscape(id)
}

// IsNotFound reports whether err is a 404 from either API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusConflict || apiErr.Code == CodeUniqueViolation)
}
