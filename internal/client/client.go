// Package client talks to the approvals REST API and translates its error
// envelope back into apperr kinds.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"procurement/internal/apperr"
	"procurement/internal/model"
)

// Client is safe for concurrent use once configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBackOff sets the retry policy for reads. Mutations are never retried.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// Token returns the bearer token in use.
func (c *Client) Token() string { return c.token }

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Field      string          `json:"field"`
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

func (c *Client) ListApprovals(ctx context.Context, page, pageSize int, filter model.ApprovalFilter) (*model.ApprovalPage, error) {
	var out model.ApprovalPage
	if err := c.get(ctx, "/api/approvals", filterQuery(page, pageSize, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetApprovalStats(ctx context.Context) (model.ApprovalStats, error) {
	var out model.ApprovalStats
	err := c.get(ctx, "/api/approvals/stats", nil, &out)
	return out, err
}

func (c *Client) GetApproval(ctx context.Context, id string) (*model.ApprovalRequest, error) {
	var out model.ApprovalRequest
	if err := c.get(ctx, "/api/approvals/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Approve(ctx context.Context, id, comment string) (*model.ApprovalRequest, error) {
	var out model.ApprovalRequest
	body := map[string]string{"comment": comment}
	if err := c.do(ctx, http.MethodPut, "/api/approvals/"+url.PathEscape(id)+"/approve", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reject(ctx context.Context, id, reason string) (*model.ApprovalRequest, error) {
	var out model.ApprovalRequest
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPut, "/api/approvals/"+url.PathEscape(id)+"/reject", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BulkApprove(ctx context.Context, ids []string, comment string) (*model.BulkApproveResult, error) {
	var out model.BulkApproveResult
	body := map[string]interface{}{"ids": ids, "comment": comment}
	if err := c.do(ctx, http.MethodPost, "/api/approvals/bulk-approve", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get retries network failures and 5xx responses with backoff.
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	op := func() error {
		err := c.do(ctx, http.MethodGet, path, q, nil, out)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func retryable(err error) bool {
	var e *httpStatusError
	if errors.As(err, &e) {
		return e.status >= http.StatusInternalServerError || e.status == http.StatusTooManyRequests
	}
	return apperr.Is(err, apperr.KindNetwork)
}

// httpStatusError keeps the status next to the decoded apperr.
type httpStatusError struct {
	status int
	err    *apperr.Error
}

func (e *httpStatusError) Error() string { return e.err.Error() }
func (e *httpStatusError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.Validation("", err.Error())
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return apperr.Service("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &httpStatusError{status: resp.StatusCode, err: apperr.New(apperr.KindService, "", resp.Status)}
		}
		return apperr.Service("failed to decode response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		kind := apperr.Kind(env.Code)
		if kind == "" {
			kind = apperr.KindService
		}
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return &httpStatusError{status: resp.StatusCode, err: apperr.New(kind, env.Field, msg)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Service("failed to decode response data", err)
		}
	}
	return nil
}

func filterQuery(page, pageSize int, f model.ApprovalFilter) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			q.Set(k, v)
		}
	}
	set("type", string(f.Type))
	set("risk_level", string(f.RiskLevel))
	set("status", string(f.Status))
	set("department", f.Department)
	if f.DateFrom != nil {
		q.Set("date_from", f.DateFrom.UTC().Format(time.RFC3339Nano))
	}
	if f.DateTo != nil {
		q.Set("date_to", f.DateTo.UTC().Format(time.RFC3339Nano))
	}
	if f.AmountMin != nil {
		q.Set("amount_min", f.AmountMin.String())
	}
	if f.AmountMax != nil {
		q.Set("amount_max", f.AmountMax.String())
	}
	return q
}

// Describe renders err for a console user.
func Describe(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		if e.Field != "" {
			return fmt.Sprintf("%s (%s): %s", e.Kind, e.Field, e.Error())
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Error())
	}
	return err.Error()
}
