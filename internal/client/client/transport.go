package client

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/mbank/internal/client/activity"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

// TokenSource hands out access tokens for outgoing requests. It is
// implemented by the token manager.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
	RefreshAccessToken(ctx context.Context) (string, error)
}

// ActivityRecorder receives one event per outbound API call.
type ActivityRecorder interface {
	Record(kind activity.Kind)
}

// AuthTransport injects the bearer token, records API activity and, when the
// server still answers 401, refreshes once and replays the request.
type AuthTransport struct {
	base     http.RoundTripper
	tokens   TokenSource
	activity ActivityRecorder
	log      logging.Logger
}

func NewAuthTransport(base http.RoundTripper, tokens TokenSource, activity ActivityRecorder, log logging.Logger) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{base: base, tokens: tokens, activity: activity, log: log}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := t.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if t.activity != nil {
		t.activity.Record(activity.KindAPICall)
	}

	resp, err := t.base.RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	retry, ok := replayable(req)
	if !ok {
		return resp, nil
	}

	t.log.Info(ctx, "access token rejected, refreshing", "method", req.Method, "path", req.URL.Path)
	fresh, rerr := t.tokens.RefreshAccessToken(ctx)
	if rerr != nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return t.base.RoundTrip(withBearer(retry, fresh))
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set(common.AuthorizationHeader, "Bearer "+token)
	return r
}

// replayable returns a copy of req with a fresh body, when one can be made.
func replayable(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, true
}
