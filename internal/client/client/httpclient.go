package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathLogout  = "/auth/logout"
	PathProfile = "/me"
	PathHealth  = "/health"

	maxErrorBody = 4 << 10
)

// HTTPClient talks to the REST backend. Auth endpoints go out on a plain
// client; Profile uses the authenticated client installed by UseAuth.
type HTTPClient struct {
	baseURL string
	plain   *http.Client
	authed  *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	plain := &http.Client{Timeout: timeout}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		plain:   plain,
		authed:  plain,
		log:     log,
	}
}

// UseAuth routes Profile (and any later authenticated call) through an
// AuthTransport bound to tokens and activity.
func (c *HTTPClient) UseAuth(tokens TokenSource, activity ActivityRecorder) {
	c.authed = &http.Client{
		Timeout:   c.plain.Timeout,
		Transport: NewAuthTransport(c.plain.Transport, tokens, activity, c.log),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	var resp models.TokenResponse
	if err := c.do(ctx, c.plain, http.MethodPost, PathLogin, "", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return models.TokenPair{}, err
	}
	return checkedPair(resp)
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string, shape RefreshShape) (models.TokenPair, error) {
	body := map[string]string{shape.String(): refreshToken}

	var resp models.TokenResponse
	if err := c.do(ctx, c.plain, http.MethodPost, PathRefresh, "", body, &resp); err != nil {
		return models.TokenPair{}, err
	}
	return checkedPair(resp)
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return c.do(ctx, c.plain, http.MethodPost, PathLogout, accessToken, logoutRequest{RefreshToken: refreshToken}, nil)
}

func (c *HTTPClient) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, c.authed, http.MethodGet, PathProfile, "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, c.plain, http.MethodGet, PathHealth, "", nil, nil)
}

func checkedPair(resp models.TokenResponse) (models.TokenPair, error) {
	pair := resp.Pair()
	if pair.Empty() {
		return models.TokenPair{}, fmt.Errorf("%w: token pair incomplete", ErrBadResponse)
	}
	return pair, nil
}

func (c *HTTPClient) do(ctx context.Context, hc *http.Client, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeader, "Bearer "+bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, common.ErrNoValidToken) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	if json.Unmarshal(b, &er) == nil {
		se.Code = er.Error
		se.Message = er.Message
		if se.Message == "" {
			se.Message = er.Error
		}
	}
	return se
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
