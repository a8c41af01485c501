package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// RESTProvider is a Provider backed by the identity provider's admin REST
// API. Calls carry the service's admin API key and go through a circuit
// breaker so a degraded provider fails fast instead of piling up requests.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// RESTProviderConfig configures the admin client.
type RESTProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRESTProvider creates the admin client with a circuit breaker that trips
// after repeated consecutive failures and probes again after a cooldown.
func NewRESTProvider(cfg RESTProviderConfig) *RESTProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "identity-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("identity provider circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &RESTProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// providerError is the provider's error response body.
type providerError struct {
	Error string `json:"error"`
}

func (p *RESTProvider) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	result, err := p.breaker.Execute(func() (any, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}

		// 4xx responses are the caller's problem, not provider health;
		// they must not trip the breaker. 5xx counts as a failure.
		rr := &restResponse{status: resp.StatusCode, body: data}
		if rr.status >= 500 {
			return rr, fmt.Errorf("provider returned %d", rr.status)
		}
		return rr, nil
	})
	resp, _ := result.(*restResponse)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("identity provider unavailable: %w", err)
		}
		if resp == nil {
			return 0, fmt.Errorf("calling identity provider: %w", err)
		}
		// 5xx: the failure is recorded against the breaker above; the caller
		// still gets the status and any error body below.
	}
	if out != nil && resp.status < 300 && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return resp.status, fmt.Errorf("decoding provider response: %w", err)
		}
	}
	if resp.status >= 300 {
		var pe providerError
		_ = json.Unmarshal(resp.body, &pe)
		if pe.Error != "" {
			return resp.status, errors.New(pe.Error)
		}
		return resp.status, err
	}

	return resp.status, nil
}

type restResponse struct {
	status int
	body   []byte
}

// CreateAccount registers a new account via POST /admin/accounts.
func (p *RESTProvider) CreateAccount(ctx context.Context, req NewAccount) (*Account, error) {
	var account Account
	status, err := p.do(ctx, http.MethodPost, "/admin/accounts", req, &account)
	if err != nil && status == 0 {
		return nil, err
	}

	switch {
	case status == http.StatusConflict:
		return nil, ErrEmailTaken
	case status >= 300:
		return nil, fmt.Errorf("creating account: provider returned %d: %w", status, errOrUnknown(err))
	}

	return &account, nil
}

// DeleteAccount removes the account via DELETE /admin/accounts/{uid}.
func (p *RESTProvider) DeleteAccount(ctx context.Context, uid string) error {
	status, err := p.do(ctx, http.MethodDelete, "/admin/accounts/"+uid, nil, nil)
	if err != nil && status == 0 {
		return err
	}

	switch {
	case status == http.StatusNotFound:
		return ErrAccountNotFound
	case status >= 300:
		return fmt.Errorf("deleting account: provider returned %d: %w", status, errOrUnknown(err))
	}

	return nil
}

// GetAccount fetches an account via GET /admin/accounts/{uid}.
func (p *RESTProvider) GetAccount(ctx context.Context, uid string) (*Account, error) {
	var account Account
	status, err := p.do(ctx, http.MethodGet, "/admin/accounts/"+uid, nil, &account)
	if err != nil && status == 0 {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return nil, ErrAccountNotFound
	case status >= 300:
		return nil, fmt.Errorf("fetching account: provider returned %d: %w", status, errOrUnknown(err))
	}

	return &account, nil
}

// ListAccounts fetches every account via GET /admin/accounts.
func (p *RESTProvider) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	status, err := p.do(ctx, http.MethodGet, "/admin/accounts", nil, &accounts)
	if err != nil && status == 0 {
		return nil, err
	}

	if status >= 300 {
		return nil, fmt.Errorf("listing accounts: provider returned %d: %w", status, errOrUnknown(err))
	}

	return accounts, nil
}

func errOrUnknown(err error) error {
	if err != nil {
		return err
	}
	return errors.New("unknown provider error")
}
