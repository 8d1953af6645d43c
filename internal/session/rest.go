// Package session manages the user-data listen key: acquisition,
// keep-alive renewal, and degradation when the venue stops honoring it.
package session

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fenwick/fustream/errs"
)

// API is the listen-key REST boundary, abstracted for tests.
type API interface {
	Create(ctx context.Context) (string, error)
	KeepAlive(ctx context.Context, token string) error
}

// REST talks to the venue's listen-key endpoint.
type REST struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

// NewREST builds a listen-key client. endpoint is the full lifecycle
// URL, e.g. https://fapi.binance.com/fapi/v1/listenKey.
func NewREST(endpoint, apiKey string, timeout time.Duration) *REST {
	return &REST{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// Create requests a fresh listen key.
func (r *REST) Create(ctx context.Context) (string, error) {
	if strings.TrimSpace(r.apiKey) == "" {
		return "", errs.New(errs.CodeAuth, errs.WithMessage("missing api key for listen key"))
	}
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return "", errs.New(errs.CodeInvalid, errs.WithMessage("create listen key request"), errs.WithCause(err))
	}
	req.Header.Set("X-MBX-APIKEY", r.apiKey)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", errs.New(errs.CodeNetwork, errs.WithMessage("request listen key"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("listen key", resp)
	}
	var payload listenKeyResponse
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&payload); err != nil {
		return "", errs.New(errs.CodeDecode, errs.WithMessage("decode listen key"), errs.WithCause(err))
	}
	if strings.TrimSpace(payload.ListenKey) == "" {
		return "", errs.New(errs.CodeUpstream, errs.WithMessage("empty listen key"))
	}
	return payload.ListenKey, nil
}

// KeepAlive extends the validity of an existing listen key.
func (r *REST) KeepAlive(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errs.New(errs.CodeInvalid, errs.WithMessage("empty listen key for keepalive"))
	}
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	params := url.Values{}
	params.Set("listenKey", strings.TrimSpace(token))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPut, r.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return errs.New(errs.CodeInvalid, errs.WithMessage("create keepalive request"), errs.WithCause(err))
	}
	req.Header.Set("X-MBX-APIKEY", r.apiKey)
	resp, err := r.client.Do(req)
	if err != nil {
		return errs.New(errs.CodeNetwork, errs.WithMessage("keepalive listen key"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return statusError("listen key keepalive", resp)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	code := errs.CodeUpstream
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = errs.CodeAuth
	}
	return errs.New(code,
		errs.WithMessage(op+" rejected"),
		errs.WithHTTP(resp.StatusCode),
		errs.WithRawBody(string(body)))
}
