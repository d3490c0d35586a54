package poweroffice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Tokens are treated as expired slightly early so an order request never
// races the real expiry.
const tokenExpiryMargin = 30 * time.Second

type tokenHolder struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// getValidToken returns the cached bearer token, refreshing it when absent
// or expired. The mutex keeps refreshes single-flight if callers ever run
// concurrently.
func (c *Client) getValidToken(ctx context.Context) (string, error) {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()

	now := c.clk.Now()
	if c.tokens.token != "" && now.Before(c.tokens.expires.Add(-tokenExpiryMargin)) {
		return c.tokens.token, nil
	}

	token, expiresIn, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	c.tokens.token = token
	c.tokens.expires = now.Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

// invalidateToken drops the cached token, forcing the next call to
// re-authenticate. Used when the API answers 401 despite a cached token.
func (c *Client) invalidateToken() {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()
	c.tokens.token = ""
	c.tokens.expires = time.Time{}
}

func (c *Client) fetchToken(ctx context.Context) (string, int64, error) {
	form := url.Values{"grant_type": []string{"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.AppKey + ":" + c.cfg.ClientKey))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	expiresIn := parsed.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 600
	}
	return parsed.AccessToken, expiresIn, nil
}
