package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/metrics"
)

const googleBackend = "google"

// Veo result statuses.
const (
	VeoCompleted = "completed"
	VeoFailed    = "failed"
)

// VeoResult carries a finished clip. Status is failed when the model
// returned no video, for instance after a safety filter.
type VeoResult struct {
	Status   string `json:"status"`
	Video    []byte `json:"-"`
	MIMEType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// veoAPI is the slice of the genai SDK used here.
type veoAPI interface {
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, v *genai.Video) ([]byte, error)
}

type VeoOptions struct {
	Model        string
	PollInterval time.Duration
	Logger       *infra.Logger
	// newAPI is swapped in tests.
	newAPI func(ctx context.Context, apiKey string) (veoAPI, error)
	now    func() time.Time
}

// VeoGenerator produces videos synchronously through Google Veo.
type VeoGenerator struct {
	model        string
	pollInterval time.Duration
	logger       *infra.Logger
	newAPI       func(ctx context.Context, apiKey string) (veoAPI, error)
	now          func() time.Time
}

func NewVeoGenerator(opts VeoOptions) *VeoGenerator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate-001"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	newAPI := opts.newAPI
	if newAPI == nil {
		newAPI = newGenaiVeo
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	return &VeoGenerator{
		model:        model,
		pollInterval: interval,
		logger:       infra.LoggerOrDiscard(opts.Logger),
		newAPI:       newAPI,
		now:          now,
	}
}

// Generate starts a Veo operation, waits for it and downloads the clip.
// image is optional.
func (g *VeoGenerator) Generate(ctx context.Context, apiKey, prompt string, image []byte) (*VeoResult, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.MissingCredential(googleBackend)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: video prompt is required", domain.ErrInvalidInput)
	}
	var img *genai.Image
	if len(image) > 0 {
		mt := mimetype.Detect(image).String()
		if !strings.HasPrefix(mt, "image/") {
			return nil, fmt.Errorf("%w: video source must be an image, got %s", domain.ErrInvalidInput, mt)
		}
		img = &genai.Image{ImageBytes: image, MIMEType: mt}
	}

	start := time.Now()
	api, err := g.newAPI(ctx, apiKey)
	if err != nil {
		return nil, &domain.RequestError{Backend: googleBackend, Operation: "veo client", Err: err}
	}
	op, err := api.GenerateVideos(ctx, g.model, prompt, img)
	if err != nil {
		metrics.RecordBackendCall(googleBackend, "veo_generate", "error", time.Since(start).Seconds())
		return nil, classifyGenaiError("veo generate", err)
	}
	for op != nil && !op.Done {
		g.logger.Debug().Str("operation", op.Name).Msg("veo: waiting for operation")
		timer := time.NewTimer(g.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &domain.RequestError{Backend: googleBackend, Operation: "veo wait", Err: ctx.Err()}
		case <-timer.C:
		}
		if op, err = api.GetVideosOperation(ctx, op); err != nil {
			return nil, classifyGenaiError("veo poll", err)
		}
	}
	elapsed := time.Since(start).Seconds()
	if op == nil {
		metrics.RecordBackendCall(googleBackend, "veo_generate", "malformed", elapsed)
		return nil, &domain.MalformedResponseError{Operation: "veo generate"}
	}
	if len(op.Error) > 0 {
		metrics.RecordBackendCall(googleBackend, "veo_generate", "failed", elapsed)
		return &VeoResult{Status: VeoFailed, Reason: fmt.Sprint(op.Error["message"])}, nil
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		reason := "no video returned"
		if op.Response != nil && len(op.Response.RAIMediaFilteredReasons) > 0 {
			reason = strings.Join(op.Response.RAIMediaFilteredReasons, "; ")
		}
		metrics.RecordBackendCall(googleBackend, "veo_generate", "failed", elapsed)
		return &VeoResult{Status: VeoFailed, Reason: reason}, nil
	}

	video := op.Response.GeneratedVideos[0].Video
	data := video.VideoBytes
	if len(data) == 0 {
		if data, err = api.Download(ctx, video); err != nil {
			return nil, classifyGenaiError("veo download", err)
		}
	}
	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	metrics.RecordBackendCall(googleBackend, "veo_generate", "ok", time.Since(start).Seconds())
	return &VeoResult{
		Status:   VeoCompleted,
		Video:    data,
		MIMEType: mimeType,
		Filename: fmt.Sprintf("veo_video_%d.mp4", g.now().Unix()),
	}, nil
}

func classifyGenaiError(op string, err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &domain.RequestError{Backend: googleBackend, Operation: op, Err: err}
	}
	if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
		return &domain.AuthError{Backend: googleBackend, Reason: apiErr.Message}
	}
	return &domain.RemoteError{Backend: googleBackend, Operation: op, Status: apiErr.Code, Body: apiErr.Message}
}

// genaiVeo adapts *genai.Client to veoAPI.
type genaiVeo struct {
	client *genai.Client
}

func newGenaiVeo(ctx context.Context, apiKey string) (veoAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiVeo{client: client}, nil
}

func (g *genaiVeo) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image) (*genai.GenerateVideosOperation, error) {
	return g.client.Models.GenerateVideos(ctx, model, prompt, image, &genai.GenerateVideosConfig{NumberOfVideos: 1})
}

func (g *genaiVeo) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (g *genaiVeo) Download(ctx context.Context, v *genai.Video) ([]byte, error) {
	return g.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(v), nil)
}
