// Package upstream reads case-note snapshots from the hospital's case-note
// backend over its REST API. The caller's bearer token is forwarded so the
// backend applies its own visibility rules.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/casenote/casenote/internal/domain/casenote"
	"github.com/casenote/casenote/internal/platform/auth"
)

const (
	requestsPath   = "/api/case-note-requests"
	individualPath = "/api/filing-requests/individual"

	maxBodyBytes = 8 << 20
)

// Client implements casenote.Repository against the REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

var _ casenote.Repository = (*Client)(nil)

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "upstream").Logger(),
	}
}

func (c *Client) GetByID(ctx context.Context, id int64) (*casenote.Request, error) {
	var r casenote.Request
	if err := c.get(ctx, requestsPath+"/"+strconv.FormatInt(id, 10), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Timeline(ctx context.Context, id int64) ([]casenote.TimelineEvent, error) {
	var events []casenote.TimelineEvent
	if err := c.getList(ctx, requestsPath+"/"+strconv.FormatInt(id, 10)+"/timeline", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) ListInvolving(ctx context.Context, userID int64) ([]*casenote.Request, error) {
	return c.listStandard(ctx, url.Values{"involving": {strconv.FormatInt(userID, 10)}})
}

// IsInvolved looks id up in the user's involving listing, so the backend's
// definition of involvement applies unchanged.
func (c *Client) IsInvolved(ctx context.Context, id, userID int64) (bool, error) {
	records, err := c.ListInvolving(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) ListHeldBy(ctx context.Context, userID int64) ([]*casenote.Request, error) {
	return c.listStandard(ctx, url.Values{"current_pic_user_id": {strconv.FormatInt(userID, 10)}})
}

func (c *Client) ListIndividualByRequester(ctx context.Context, userID int64) ([]*casenote.Request, error) {
	return c.listIndividual(ctx, url.Values{
		"status":       {string(casenote.StatusPending)},
		"requested_by": {strconv.FormatInt(userID, 10)},
	})
}

// ListForReview fetches standard records and, when the status filter admits
// pending ones, the individual sub-requests awaiting MR approval.
func (c *Client) ListForReview(ctx context.Context, q casenote.ReviewQuery) ([]*casenote.Request, error) {
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	if q.DepartmentID != 0 {
		query.Set("department_id", strconv.FormatInt(q.DepartmentID, 10))
	}

	var standard, individual []*casenote.Request
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		standard, err = c.listStandard(gctx, query)
		return err
	})
	if q.Status == "" || q.Status == casenote.StatusPending {
		g.Go(func() error {
			iq := url.Values{"status": {string(casenote.StatusPending)}}
			if q.DepartmentID != 0 {
				iq.Set("department_id", strconv.FormatInt(q.DepartmentID, 10))
			}
			var err error
			individual, err = c.listIndividual(gctx, iq)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(standard, individual...), nil
}

func (c *Client) listStandard(ctx context.Context, q url.Values) ([]*casenote.Request, error) {
	var out []*casenote.Request
	if err := c.getList(ctx, requestsPath, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) listIndividual(ctx context.Context, q url.Values) ([]*casenote.Request, error) {
	var out []*casenote.Request
	if err := c.getList(ctx, individualPath, q, &out); err != nil {
		return nil, err
	}
	for _, r := range out {
		r.Kind = casenote.KindIndividual
		r.Normalize()
	}
	return out, nil
}

// getList accepts either a bare JSON array or a {"data": [...]} envelope.
func (c *Client) getList(ctx context.Context, path string, q url.Values, out interface{}) error {
	var raw json.RawMessage
	if err := c.get(ctx, path, q, &raw); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fmt.Errorf("decode %s envelope: %w", path, err)
		}
		trimmed = env.Data
	}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok := auth.TokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Str("path", path).Msg("upstream request failed")
		return fmt.Errorf("%w: %v", casenote.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", casenote.ErrUnavailable, err)
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream response")

	if err := statusError(resp.StatusCode, body); err != nil {
		if resp.StatusCode >= 500 {
			c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("upstream server error")
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return casenote.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return casenote.ErrForbidden
	case code >= 500:
		return fmt.Errorf("%w: status %d", casenote.ErrUnavailable, code)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("upstream returned %d: %s", code, msg)
}
