package apiclient

import (
	"context"
	"net/http"

	"helpdesk-dashboard/internal/domain/auth"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
)

const (
	LoginPath       = "/auth/login"
	LogoutPath      = "/auth/logout"
	CurrentUserPath = "/user/current"
)

// AuthAPI wraps the backend's authentication endpoints.
type AuthAPI struct {
	client *Client
}

func NewAuthAPI(client *Client) *AuthAPI {
	return &AuthAPI{client: client}
}

// Login exchanges credentials for a token pair. The backend may answer 200
// with a non-200 status_code in the body; that is treated as a rejection.
func (a *AuthAPI) Login(ctx context.Context, req auth.LoginRequest) (auth.TokenPair, error) {
	var resp auth.LoginResponse
	if err := a.client.Do(ctx, http.MethodPost, LoginPath, req, &resp, Anonymous()); err != nil {
		return auth.TokenPair{}, err
	}
	if resp.StatusCode != 0 && resp.StatusCode != http.StatusOK {
		return auth.TokenPair{}, &xerrors.APIError{Status: resp.StatusCode, Message: resp.Message}
	}
	if resp.AccessToken == "" {
		return auth.TokenPair{}, xerrors.Wrap(xerrors.ErrMalformedToken, "login returned no access token")
	}
	return auth.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Logout revokes accessToken server-side. It never refreshes: a dead token
// is already as logged out as it gets.
func (a *AuthAPI) Logout(ctx context.Context, accessToken string) error {
	opts := []CallOption{WithoutRefresh()}
	if accessToken != "" {
		opts = append(opts, WithBearer(accessToken))
	} else {
		opts = append(opts, Anonymous())
	}
	return a.client.Do(ctx, http.MethodPost, LogoutPath, nil, nil, opts...)
}

// CurrentUser fetches the server-truth profile for the stored access token.
func (a *AuthAPI) CurrentUser(ctx context.Context) (*auth.Profile, error) {
	var p auth.Profile
	if err := a.client.Do(ctx, http.MethodGet, CurrentUserPath, nil, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "profile without id")
	}
	return &p, nil
}
