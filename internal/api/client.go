package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/auth"
	"github.com/nimbusworks/workchat/pkg/httpext"
)

// ErrNotAuthenticated is returned when a refresh is impossible because
// no refresh token is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client talks to the workspace backend. Every request carries the
// stored bearer token; a 401 triggers exactly one refresh-and-retry.
type Client struct {
	baseURL string
	http    *http.Client
	store   auth.Store

	// refreshMu single-flights token refreshes across callers.
	refreshMu sync.Mutex
}

func NewClient(baseURL string, store auth.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
}

// Login exchanges a username and password for credentials and stores
// them.
func (c *Client) Login(ctx context.Context, username, password string) (*auth.Credentials, error) {
	resp, err := c.requestToken(ctx, &auth.TokenRequest{
		GrantType: auth.GrantTypePassword,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	creds := auth.CredentialsFromTokenResponse(resp)
	if err := c.store.Save(ctx, creds); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}
	return creds, nil
}

// Logout drops the stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Refresh exchanges the stored refresh token for new credentials.
// Satisfies auth.Refresher. Concurrent callers share one refresh.
func (c *Client) Refresh(ctx context.Context) (*auth.Credentials, error) {
	return c.refreshIfStale(ctx, "")
}

// refreshIfStale refreshes unless another caller already replaced the
// access token the caller saw rejected.
func (c *Client) refreshIfStale(ctx context.Context, rejectedToken string) (*auth.Credentials, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rejectedToken != "" && creds.AccessToken != rejectedToken {
		// A concurrent refresh already happened.
		return creds, nil
	}
	if creds.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	resp, err := c.requestToken(ctx, &auth.TokenRequest{
		GrantType:    auth.GrantTypeRefresh,
		RefreshToken: creds.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	fresh := auth.CredentialsFromTokenResponse(resp)
	if err := c.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to store refreshed credentials: %w", err)
	}

	log.Debug().Msg("Access token refreshed")
	return fresh, nil
}

// AccessToken returns the current bearer token. Satisfies the
// connection pool's token source.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	creds, err := c.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// requestToken calls the token endpoint without bearer auth.
func (c *Client) requestToken(ctx context.Context, tokenReq *auth.TokenRequest) (*auth.TokenResponse, error) {
	body, err := json.Marshal(tokenReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpext.DecodeError(resp, data)
	}

	var tokenResp auth.TokenResponse
	if err := json.Unmarshal(data, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tokenResp, nil
}

// do issues an authenticated JSON request. A nil in skips the request
// body; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = data
	}

	token, _ := c.AccessToken(ctx)

	resp, data, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		creds, refreshErr := c.refreshIfStale(ctx, token)
		if refreshErr != nil {
			log.Warn().Err(refreshErr).Str("path", path).Msg("Token refresh after 401 failed")
			return httpext.DecodeError(resp, data)
		}

		resp, data, err = c.send(ctx, method, path, payload, creds.AccessToken)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpext.DecodeError(resp, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, data, nil
}
