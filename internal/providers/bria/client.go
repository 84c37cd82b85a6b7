package bria

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
)

const (
	backendName    = "bria"
	defaultBaseURL = "https://engine.prod.bria-api.com/v1"
	defaultHDModel = "2.2"
)

// Options configures the product photography client.
type Options struct {
	BaseURL        string
	HDModelVersion string
	HTTPClient     *resty.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls the product photography API. It is stateless; every call
// takes the credential explicitly so sessions never share a key.
type Client struct {
	baseURL   string
	hdVersion string
	http      *resty.Client
	logger    *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = resty.New().
			SetTimeout(timeout).
			SetRetryCount(0)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	hd := strings.TrimSpace(opts.HDModelVersion)
	if hd == "" {
		hd = defaultHDModel
	}
	return &Client{
		baseURL:   baseURL,
		hdVersion: hd,
		http:      httpClient,
		logger:    infra.LoggerOrDiscard(opts.Logger),
	}
}

// post sends body as JSON and decodes the answer into a loosely typed value.
// A blank key fails before any network traffic.
func (c *Client) post(ctx context.Context, apiKey string, op domain.OperationKind, path string, body any) (any, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.MissingCredential(backendName)
	}
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("api_token", apiKey).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.baseURL + path)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordBackendCall(backendName, string(op), "transport_error", elapsed)
		return nil, &domain.RequestError{Backend: backendName, Operation: string(op), Err: err}
	}

	status := resp.StatusCode()
	c.logger.Debug().
		Str("operation", string(op)).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("bria: response received")

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		metrics.RecordBackendCall(backendName, string(op), "auth_error", elapsed)
		return nil, &domain.AuthError{Backend: backendName, Reason: fmt.Sprintf("credential rejected (status %d)", status)}
	case status < 200 || status >= 300:
		outcome := "remote_error"
		if status == http.StatusUnprocessableEntity {
			outcome = "moderation"
		}
		metrics.RecordBackendCall(backendName, string(op), outcome, elapsed)
		return nil, &domain.RemoteError{Backend: backendName, Operation: string(op), Status: status, Body: resp.String()}
	}

	var decoded any
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		metrics.RecordBackendCall(backendName, string(op), "malformed", elapsed)
		return nil, &domain.MalformedResponseError{Operation: string(op)}
	}
	metrics.RecordBackendCall(backendName, string(op), "ok", elapsed)
	return decoded, nil
}

// Download fetches a generated asset, typically a result_url.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", &domain.RequestError{Backend: backendName, Operation: "download", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", &domain.RemoteError{Backend: backendName, Operation: "download", Status: resp.StatusCode()}
	}
	data := resp.Body()
	return data, mimetype.Detect(data).String(), nil
}

// encodeImage validates that data is an image and returns it base64 encoded.
func encodeImage(field string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s must be an image, got %s", domain.ErrInvalidInput, field, mt.String())
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
