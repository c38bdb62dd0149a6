package cms

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core/session"
)

var ErrNoJWT = errors.New("cms: login response carries no jwt")

const (
	loginPath   = "/api/auth/local"
	profilePath = "/api/users/me"
)

type (
	LoginRequest struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}

	LoginResponse struct {
		JWT  string          `json:"jwt"`
		User json.RawMessage `json:"user"`
	}
)

// Login exchanges credentials for a JWT. It never sends a bearer token.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	var resp LoginResponse
	anon := c.WithTokens(nil)
	if err := anon.Post(ctx, loginPath, LoginRequest{Identifier: identifier, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.JWT == "" {
		return "", ErrNoJWT
	}
	return resp.JWT, nil
}

// Me fetches the profile of the authenticated user with its role and branch populated.
func (c *Client) Me(ctx context.Context) (session.UserRecord, error) {
	var raw json.RawMessage
	q := url.Values{"populate": {"role", "branch"}}
	if err := c.Get(ctx, profilePath, q, &raw); err != nil {
		return nil, err
	}
	rec, err := session.NewUserRecord(raw)
	if err != nil {
		return nil, errors.Wrap(err, "reading profile")
	}
	return rec, nil
}
