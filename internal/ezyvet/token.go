package ezyvet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/ezyvet-etl/internal/model"
)

// TokenIssuer exchanges long-lived partner credentials for a bearer
// token.
type TokenIssuer interface {
	AccessToken(ctx context.Context, cred *model.Credential) (string, error)
}

// OAuthTokenIssuer implements TokenIssuer against the ezyVet OAuth
// client-credentials endpoint. There is no retry at this layer; a
// failed exchange surfaces directly.
type OAuthTokenIssuer struct {
	baseURL string
	scope   string
	http    *http.Client
}

func NewOAuthTokenIssuer(baseURL, scope string, httpClient *http.Client) *OAuthTokenIssuer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthTokenIssuer{
		baseURL: baseURL,
		scope:   scope,
		http:    httpClient,
	}
}

func (i *OAuthTokenIssuer) AccessToken(ctx context.Context, cred *model.Credential) (string, error) {
	form := url.Values{}
	form.Set("partner_id", cred.PartnerID)
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", i.scope)

	endpoint := i.baseURL + "v1/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	return payload.AccessToken, nil
}
