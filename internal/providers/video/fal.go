package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
)

const falBackend = "fal"

// Queue statuses reported by the job API.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

type FalOptions struct {
	QueueURL       string
	StorageURL     string
	HTTPClient     *resty.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// StatusInterval is the wait between status checks in Subscribe.
	StatusInterval time.Duration
}

// FalClient talks to the queue based image-to-video API.
type FalClient struct {
	queueURL       string
	storageURL     string
	http           *resty.Client
	logger         *infra.Logger
	statusInterval time.Duration
}

// Submission is the answer to an async submit.
type Submission struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

// QueueStatus reports progress of a submitted request.
type QueueStatus struct {
	Status        string           `json:"status"`
	QueuePosition int              `json:"queue_position,omitempty"`
	Logs          []map[string]any `json:"logs,omitempty"`
}

func (s QueueStatus) Completed() bool {
	return s.Status == StatusCompleted
}

func NewFalClient(opts FalOptions) *FalClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = resty.New().
			SetTimeout(timeout).
			SetRetryCount(0)
	}
	queueURL := strings.TrimRight(opts.QueueURL, "/")
	if queueURL == "" {
		queueURL = "https://queue.fal.run"
	}
	storageURL := strings.TrimRight(opts.StorageURL, "/")
	if storageURL == "" {
		storageURL = "https://rest.alpha.fal.ai"
	}
	interval := opts.StatusInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &FalClient{
		queueURL:       queueURL,
		storageURL:     storageURL,
		http:           httpClient,
		logger:         infra.LoggerOrDiscard(opts.Logger),
		statusInterval: interval,
	}
}

// Submit enqueues a generation and returns immediately.
func (f *FalClient) Submit(ctx context.Context, apiKey, modelID string, p Params) (*Submission, error) {
	var sub Submission
	if err := f.do(ctx, apiKey, "submit", http.MethodPost, f.queueURL+"/"+modelID, p.arguments(), &sub); err != nil {
		return nil, err
	}
	if sub.RequestID == "" {
		return nil, &domain.MalformedResponseError{Operation: "video submit", Keys: []string{"request_id"}}
	}
	f.logger.Info().Str("model", modelID).Str("request_id", sub.RequestID).Msg("fal: request submitted")
	return &sub, nil
}

// Subscribe submits and waits for completion, then returns the result
// payload. The wait is bounded only by ctx.
func (f *FalClient) Subscribe(ctx context.Context, apiKey, modelID string, p Params) (any, error) {
	sub, err := f.Submit(ctx, apiKey, modelID, p)
	if err != nil {
		return nil, err
	}
	for {
		status, err := f.Status(ctx, apiKey, modelID, sub.RequestID)
		if err != nil {
			return nil, err
		}
		if status.Completed() {
			return f.Result(ctx, apiKey, modelID, sub.RequestID)
		}
		timer := time.NewTimer(f.statusInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &domain.RequestError{Backend: falBackend, Operation: "subscribe", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (f *FalClient) Status(ctx context.Context, apiKey, modelID, requestID string) (*QueueStatus, error) {
	var status QueueStatus
	url := fmt.Sprintf("%s/%s/requests/%s/status", f.queueURL, appPath(modelID), requestID)
	if err := f.do(ctx, apiKey, "status", http.MethodGet, url, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (f *FalClient) Result(ctx context.Context, apiKey, modelID, requestID string) (any, error) {
	var raw any
	url := fmt.Sprintf("%s/%s/requests/%s", f.queueURL, appPath(modelID), requestID)
	if err := f.do(ctx, apiKey, "result", http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Upload stores a local image on the backend CDN and returns its URL.
func (f *FalClient) Upload(ctx context.Context, apiKey string, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: upload is empty", domain.ErrInvalidInput)
	}
	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: upload must be an image, got %s", domain.ErrInvalidInput, contentType)
	}
	if filename = path.Base(strings.TrimSpace(filename)); filename == "." || filename == "/" {
		filename = "upload" + mimetype.Detect(data).Extension()
	}
	var initiated struct {
		UploadURL string `json:"upload_url"`
		FileURL   string `json:"file_url"`
	}
	body := map[string]string{"file_name": filename, "content_type": contentType}
	if err := f.do(ctx, apiKey, "upload_initiate", http.MethodPost, f.storageURL+"/storage/upload/initiate", body, &initiated); err != nil {
		return "", err
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", &domain.MalformedResponseError{Operation: "video upload", Keys: []string{"upload_url", "file_url"}}
	}
	resp, err := f.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(initiated.UploadURL)
	if err != nil {
		return "", &domain.RequestError{Backend: falBackend, Operation: "upload", Err: err}
	}
	if resp.IsError() {
		return "", &domain.RemoteError{Backend: falBackend, Operation: "upload", Status: resp.StatusCode(), Body: resp.String()}
	}
	return initiated.FileURL, nil
}

func (f *FalClient) do(ctx context.Context, apiKey, op, method, url string, body, out any) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return domain.MissingCredential(falBackend)
	}
	req := f.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Key "+apiKey).
		SetHeader("Accept", "application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	start := time.Now()
	resp, err := req.Execute(method, url)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordBackendCall(falBackend, op, "transport_error", elapsed)
		return &domain.RequestError{Backend: falBackend, Operation: op, Err: err}
	}
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		metrics.RecordBackendCall(falBackend, op, "auth_error", elapsed)
		return &domain.AuthError{Backend: falBackend, Reason: fmt.Sprintf("credential rejected (status %d)", status)}
	case resp.IsError() || status >= 300:
		metrics.RecordBackendCall(falBackend, op, "remote_error", elapsed)
		return &domain.RemoteError{Backend: falBackend, Operation: op, Status: status, Body: resp.String()}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		metrics.RecordBackendCall(falBackend, op, "malformed", elapsed)
		return &domain.MalformedResponseError{Operation: "video " + op}
	}
	metrics.RecordBackendCall(falBackend, op, "ok", elapsed)
	return nil
}

// appPath keeps the owner/app prefix of a model id; status and result
// endpoints are addressed per app, not per model variant.
func appPath(modelID string) string {
	parts := strings.Split(strings.Trim(modelID, "/"), "/")
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return parts[0] + "/" + parts[1]
}
