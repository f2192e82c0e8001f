// Package auth implements the Authorizer: a token cache that keeps the
// platform's app access token fresh across concurrent callers.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rustcc-bot/qbot-gateway/internal/apierr"
)

// refreshSkew is how far ahead of the deadline a token is considered
// stale and due for refresh.
const refreshSkew = 60 * time.Second

// AccessTokenError wraps a platform API error encountered while
// refreshing the access token. It is non-recoverable from the event
// gateway's point of view (see internal/wserr).
type AccessTokenError struct {
	Err error
}

func (e *AccessTokenError) Error() string {
	return fmt.Sprintf("error getting access token: %s", e.Err)
}

func (e *AccessTokenError) Unwrap() error { return e.Err }

// flexibleInt accepts expires_in encoded as either a JSON number or a
// string of digits.
type flexibleInt int64

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*f = flexibleInt(asNumber)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("auth: expires_in is neither a number nor a string: %w", err)
	}
	parsed, err := strconv.ParseInt(asString, 10, 64)
	if err != nil {
		return fmt.Errorf("auth: expires_in string %q is not an integer: %w", asString, err)
	}
	*f = flexibleInt(parsed)
	return nil
}

type getAccessTokenRequest struct {
	AppID        string `json:"appId"`
	ClientSecret string `json:"clientSecret"`
}

type getAccessTokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   flexibleInt `json:"expires_in"`
}

// cachedToken is the current token and the absolute instant it stops
// being valid.
type cachedToken struct {
	token    string
	deadline time.Time
}

func (c cachedToken) validAt(now time.Time) bool {
	return now.Before(c.deadline.Add(-refreshSkew))
}

// Authorizer obtains and caches a platform access token, refreshing it
// before expiry. Concurrent callers coalesce onto a single in-flight
// refresh.
type Authorizer struct {
	baseURL      string
	appID        string
	clientSecret string
	httpClient   *http.Client

	mu      sync.Mutex
	current cachedToken

	sf singleflight.Group
}

// New constructs an Authorizer by performing an eager initial refresh;
// construction fails if that refresh fails.
func New(ctx context.Context, baseURL, appID, clientSecret string) (*Authorizer, error) {
	a := &Authorizer{
		baseURL:      baseURL,
		appID:        appID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccessToken returns the current bearer token, refreshing it first
// if it is within refreshSkew of its deadline.
func (a *Authorizer) GetAccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	current := a.current
	a.mu.Unlock()

	if current.token != "" && current.validAt(time.Now()) {
		return current.token, nil
	}
	return a.refresh(ctx)
}

// refresh coalesces concurrent refreshes into a single in-flight HTTP
// call: only the first caller to reach singleflight.Do actually issues
// the request, every other waiter observes its result.
func (a *Authorizer) refresh(ctx context.Context) (string, error) {
	v, err, _ := a.sf.Do("refresh", func() (any, error) {
		a.mu.Lock()
		current := a.current
		a.mu.Unlock()
		if current.token != "" && current.validAt(time.Now()) {
			return current.token, nil
		}

		token, deadline, err := a.requestToken(ctx)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.current = cachedToken{token: token, deadline: deadline}
		a.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Authorizer) requestToken(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(getAccessTokenRequest{
		AppID:        a.appID,
		ClientSecret: a.clientSecret,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/app/getAppAccessToken", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	issuedAt := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: request access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, &AccessTokenError{Err: apierr.FromResponse(resp)}
	}

	var parsed getAccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: decode response: %w", err)
	}
	deadline := issuedAt.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return parsed.AccessToken, deadline, nil
}
