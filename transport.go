package freeplay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// Result is the uniform outcome of a Transport exchange. A StatusCode of 0
// is a sentinel meaning the exchange itself failed (connect, transfer, or
// body parse) and never collides with a real HTTP status; in that case
// ErrorMessage is non-empty. Success is a status in the 200-299 range.
type Result struct {
	StatusCode   int
	Body         map[string]any
	ErrorMessage string

	raw []byte
}

// Ok reports whether the exchange completed with a 2xx status.
func (r Result) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Decode unmarshals the raw response body into target.
func (r Result) Decode(target any) error {
	if len(r.raw) == 0 {
		return errors.New("result carries no body to decode")
	}
	if err := json.Unmarshal(r.raw, target); err != nil {
		return fmt.Errorf("decode result body: %w", err)
	}
	return nil
}

// TransportConfig configures a Transport. HTTPClient and Logger are optional.
type TransportConfig struct {
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Verbose    bool
}

// Transport issues authenticated JSON requests against the Freeplay API and
// folds every outcome, including its own failures, into a Result. It never
// returns a Go error and never panics past its boundary.
type Transport struct {
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	verbose bool
}

// NewTransport constructs a Transport. A nil HTTPClient falls back to
// http.DefaultClient and a nil Logger to a nop logger.
func NewTransport(cfg TransportConfig) *Transport {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger,
		verbose: cfg.Verbose,
	}
}

// Get issues an authenticated GET request.
func (t *Transport) Get(ctx context.Context, url string) Result {
	return t.do(ctx, http.MethodGet, url, nil)
}

// Post issues an authenticated POST request with a JSON-encoded payload.
func (t *Transport) Post(ctx context.Context, url string, payload any) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Errorf("marshal payload: %w", err))
	}
	return t.do(ctx, http.MethodPost, url, body)
}

func (t *Transport) do(ctx context.Context, method, url string, body []byte) Result {
	if t.verbose {
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("url", url),
		}
		if body != nil {
			fields = append(fields, zap.ByteString("payload", body))
		}
		t.logger.Info("request", fields...)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return failure(fmt.Errorf("construct request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := t.client.Do(req)
	if err != nil {
		return failure(fmt.Errorf("%s %s: %w", method, url, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Errorf("read response body: %w", err))
	}

	// An empty body, success or failure, decodes to an empty object.
	parsed := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return failure(fmt.Errorf("parse response body: %w", err))
		}
	}

	if t.verbose {
		t.logger.Info("response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
	}

	return Result{StatusCode: resp.StatusCode, Body: parsed, raw: raw}
}

func failure(err error) Result {
	return Result{Body: map[string]any{}, ErrorMessage: err.Error()}
}
