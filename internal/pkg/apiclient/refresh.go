package apiclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"helpdesk-dashboard/internal/domain/auth"
	xerrors "helpdesk-dashboard/internal/pkg/errors"
	"helpdesk-dashboard/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RefreshPath is the backend endpoint that trades a refresh token for a new pair.
const RefreshPath = "/auth/access_token"

// Refresher renews token pairs. Concurrent callers presenting the same
// refresh token share one backend call and all observe its outcome.
type Refresher struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	grace    time.Duration
	rotation RotationCache
	metrics  *metrics.Metrics
	logger   *zap.Logger

	group singleflight.Group
}

func NewRefresher(cfg Config, httpClient *http.Client, rotation RotationCache, m *metrics.Metrics, logger *zap.Logger) *Refresher {
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{
		baseURL:  cfg.BaseURL,
		http:     httpClient,
		timeout:  timeout,
		grace:    cfg.RotationGrace,
		rotation: rotation,
		metrics:  m,
		logger:   logger,
	}
}

// Refresh returns a fresh pair for refreshToken. ErrSessionExpired means the
// backend refused the token (or the refresh timed out) and the session is
// over; ErrUnavailable means it may be retried later.
//
// The backend call runs detached from ctx so a caller that gives up does not
// cancel the refresh for everyone else waiting on it.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	key := fingerprint(refreshToken)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.refresh(key, refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return auth.TokenPair{}, res.Err
		}
		return res.Val.(auth.TokenPair), nil
	case <-ctx.Done():
		return auth.TokenPair{}, ctx.Err()
	}
}

func (r *Refresher) refresh(key, refreshToken string) (auth.TokenPair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if r.rotation != nil {
		pair, ok, err := r.rotation.Lookup(ctx, key)
		if err != nil {
			r.logger.Warn("rotation cache lookup failed", zap.Error(err))
		} else if ok {
			r.metrics.Refresh("reused")
			return pair, nil
		}
	}

	pair, err := r.call(ctx, refreshToken)
	if err != nil {
		r.metrics.Refresh("failed")
		r.logger.Info("token refresh failed", zap.Error(err))
		return auth.TokenPair{}, err
	}

	if r.rotation != nil && r.grace > 0 {
		if err := r.rotation.Remember(ctx, key, pair, r.grace); err != nil {
			r.logger.Warn("rotation cache store failed", zap.Error(err))
		}
	}
	r.metrics.Refresh("ok")
	return pair, nil
}

// call goes straight to the backend so a refresh never re-enters 401 handling.
func (r *Refresher) call(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+RefreshPath, nil)
	if err != nil {
		return auth.TokenPair{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := r.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return auth.TokenPair{}, xerrors.Wrap(xerrors.ErrSessionExpired, "refresh timed out")
		}
		return auth.TokenPair{}, fmt.Errorf("%w: refresh: %v", xerrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("%w: refresh: %v", xerrors.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return auth.TokenPair{}, fmt.Errorf("%w: %w", xerrors.ErrSessionExpired,
			&xerrors.APIError{Status: resp.StatusCode, Message: messageOf(body)})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return auth.TokenPair{}, fmt.Errorf("%w: refresh: status %d", xerrors.ErrUnavailable, resp.StatusCode)
	}

	var out auth.RefreshResponse
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return auth.TokenPair{}, xerrors.Wrap(xerrors.ErrSessionExpired, "refresh returned no access token")
	}

	pair := auth.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if pair.RefreshToken == "" {
		// Backends without rotation keep the old refresh token valid.
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
