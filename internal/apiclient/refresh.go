package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"eduadmin-console/internal/auth"
	"eduadmin-console/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ErrRefreshFailed is returned to every call that waited on a refresh
// episode that settled with failure. It is distinguishable from the
// caller's original 401 so upstream code can redirect to login instead of
// rendering a field error.
var ErrRefreshFailed = errors.New("token refresh failed")

const refreshPath = "/auth/refresh"

// refresher coordinates silent credential refresh. The single-flight group
// is keyed by the refresh credential value: all concurrently failing calls
// from one browser session share a single upstream /auth/refresh call,
// while distinct sessions refresh independently. The group's wait-list is
// the pending-request queue; it drains exactly once when the in-flight
// refresh settles, and is empty between episodes.
type refresher struct {
	client  *Client
	group   singleflight.Group
	timeout time.Duration
}

func newRefresher(c *Client) *refresher {
	return &refresher{client: c, timeout: 10 * time.Second}
}

// run performs (or joins) the refresh episode for the session identified by
// the refresh cookie in cookies. On success it returns the rotated cookie
// pair set by the upstream. On failure the call that initiated the episode
// receives origErr (its original 401), and every call that merely waited
// receives ErrRefreshFailed.
func (r *refresher) run(ctx context.Context, cookies []*http.Cookie, origErr error) ([]*http.Cookie, error) {
	// No refresh credential means no recovery: the caller keeps its 401.
	key := cookieValue(cookies, auth.RefreshCookieName)
	if key == "" {
		return nil, origErr
	}

	// mine is set only inside the caller whose function actually ran, which
	// identifies the episode's initiator among all single-flight waiters.
	var mine bool
	v, err, _ := r.group.Do(key, func() (any, error) {
		mine = true
		return r.refresh(ctx, cookies)
	})
	if err != nil {
		if mine {
			return nil, origErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return v.([]*http.Cookie), nil
}

// refresh is the primitive: one GET /auth/refresh carrying the session's
// cookies, bounded by the refresh timeout. It either succeeds, meaning the
// upstream rotated the credential pair, or fails; there is no partial state
// and no retry.
func (r *refresher) refresh(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.baseURL+refreshPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	res, err := r.client.http.Do(req)
	if err != nil {
		logger.From(ctx).Warn("token refresh failed", "err", err)
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		logger.From(ctx).Warn("token refresh rejected", "status", res.StatusCode)
		return nil, fmt.Errorf("refresh returned status %d", res.StatusCode)
	}

	rotated := res.Cookies()
	if cookieValue(rotated, auth.AccessCookieName) == "" {
		return nil, errors.New("refresh response carried no rotated access credential")
	}
	return rotated, nil
}

// APIError is the uniform failure shape for non-2xx upstream responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// toAPIError extracts the upstream's human-readable message when present.
func toAPIError(res *Response) *APIError {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(res.Body, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &APIError{Status: res.Status, Message: msg}
}
