package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/talkcents/talkcents/internal/model"
)

// ErrNoAccessToken means a login succeeded but returned no token.
var ErrNoAccessToken = errors.New("login response has no access_token")

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token. It never sends an
// existing token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	data, err := encodeJSON(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encoding login body: %w", err)
	}
	body, err := c.do(ctx, request{method: http.MethodPost, path: "/user/login", body: data, anonymous: true})
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := decode(body, &resp); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	token := strings.TrimSpace(resp.AccessToken)
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// Me returns the authenticated user's profile. A 401/403 means the
// stored token is no longer valid.
func (c *Client) Me(ctx context.Context) (model.Raw, error) {
	return c.record(ctx, http.MethodGet, "/user/me", nil)
}
