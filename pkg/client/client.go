// Package client is the consumer-facing contract for the user-management
// API: a typed HTTP client plus a Roster that mirrors the server-side list
// the way an administrative frontend would hold it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is a managed principal as returned by the API.
type User struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	Address   string `json:"address"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// CreateUserRequest is the provisioning payload.
type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	Address   string `json:"address,omitempty"`
	Role      string `json:"role"`
}

// APIError is a structured failure from the API. Message is human-readable
// and safe to surface directly.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TokenSource supplies the caller's current bearer credential. Tokens are
// fetched per request so a refreshed credential is picked up automatically.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource for a fixed token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Client invokes the user-management API with the caller's credential.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// New creates a Client for the given API base URL.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	token, err := c.tokens(ctx)
	if err != nil {
		return fmt.Errorf("fetching credential: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if env.Error != nil {
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// CreateUser provisions a new principal. idempotencyKey may be empty; when
// set, retrying with the same key replays the first outcome instead of
// creating a duplicate.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest, idempotencyKey string) (*User, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}

	var u User
	if err := c.do(ctx, http.MethodPost, "/users", req, headers, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns the roster visible to the caller.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser deprovisions the principal with the given UID.
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+uid, nil, nil, nil)
}
