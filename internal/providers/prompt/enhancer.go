package prompt

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Backend is the subset of the photography client used for enhancement.
type Backend interface {
	EnhancePrompt(ctx context.Context, apiKey, prompt string) (any, error)
}

type EnhanceRequest struct {
	Prompt string
	APIKey string
}

type EnhanceResponse struct {
	Original   string   `json:"original"`
	Enhanced   string   `json:"enhanced"`
	Variations []string `json:"variations,omitempty"`
	// Fallback is set when the backend failed and Enhanced is the original prompt.
	Fallback bool `json:"fallback"`
}

type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
}

// BackendEnhancer asks the backend for prompt variations and keeps the
// first one. Any failure other than a credential problem degrades to the
// original prompt instead of failing the action.
type BackendEnhancer struct {
	backend Backend
	logger  *infra.Logger
}

func NewBackendEnhancer(backend Backend, logger *infra.Logger) *BackendEnhancer {
	return &BackendEnhancer{backend: backend, logger: infra.LoggerOrDiscard(logger)}
}

func (b *BackendEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	original := strings.TrimSpace(req.Prompt)
	if original == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	raw, err := b.backend.EnhancePrompt(ctx, req.APIKey, original)
	if err != nil {
		if domain.IsAuthError(err) {
			return nil, err
		}
		b.logger.Warn().Err(err).Msg("prompt: enhancement failed, keeping original prompt")
		return useFallback(original), nil
	}
	variations := parseVariations(raw)
	enhanced := coalesce(append(variations, original)...)
	return &EnhanceResponse{
		Original:   original,
		Enhanced:   enhanced,
		Variations: variations,
		Fallback:   len(variations) == 0,
	}, nil
}

func useFallback(original string) *EnhanceResponse {
	return &EnhanceResponse{Original: original, Enhanced: original, Fallback: true}
}

var _ Enhancer = (*BackendEnhancer)(nil)
