package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
)

type fakeBackend struct {
	raw   any
	err   error
	calls int
}

func (f *fakeBackend) EnhancePrompt(ctx context.Context, apiKey, prompt string) (any, error) {
	f.calls++
	return f.raw, f.err
}

func TestEnhanceTakesFirstVariation(t *testing.T) {
	backend := &fakeBackend{raw: map[string]any{"prompt variations": []any{"a glossy red mug on oak", "second"}}}
	res, err := NewBackendEnhancer(backend, nil).Enhance(context.Background(), EnhanceRequest{Prompt: " red mug ", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "red mug", res.Original)
	assert.Equal(t, "a glossy red mug on oak", res.Enhanced)
	assert.Len(t, res.Variations, 2)
	assert.False(t, res.Fallback)
}

func TestEnhanceFallsBackOnRemoteFailure(t *testing.T) {
	backend := &fakeBackend{err: &domain.RemoteError{Backend: "bria", Status: 500}}
	res, err := NewBackendEnhancer(backend, nil).Enhance(context.Background(), EnhanceRequest{Prompt: "red mug", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "red mug", res.Enhanced)
	assert.True(t, res.Fallback)
}

func TestEnhanceMissingVariationsKeepsOriginal(t *testing.T) {
	backend := &fakeBackend{raw: map[string]any{"other": 1}}
	res, err := NewBackendEnhancer(backend, nil).Enhance(context.Background(), EnhanceRequest{Prompt: "red mug", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "red mug", res.Enhanced)
	assert.True(t, res.Fallback)
}

func TestEnhanceAuthErrorPropagates(t *testing.T) {
	backend := &fakeBackend{err: domain.MissingCredential("bria")}
	_, err := NewBackendEnhancer(backend, nil).Enhance(context.Background(), EnhanceRequest{Prompt: "red mug"})
	assert.True(t, domain.IsAuthError(err))
}

func TestEnhanceEmptyPrompt(t *testing.T) {
	backend := &fakeBackend{}
	_, err := NewBackendEnhancer(backend, nil).Enhance(context.Background(), EnhanceRequest{Prompt: "  "})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Zero(t, backend.calls)
}

func TestParseVariationsShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{name: "plain string", raw: map[string]any{"prompt variations": "one"}, want: []string{"one"}},
		{name: "json list string", raw: map[string]any{"prompt variations": "```json\n[\"a\", \"b\"]\n```"}, want: []string{"a", "b"}},
		{name: "blank entries dropped", raw: map[string]any{"prompt variations": []any{" ", "x", 3}}, want: []string{"x"}},
		{name: "not an object", raw: []any{"a"}, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseVariations(tc.raw))
		})
	}
}

func TestApplyStyle(t *testing.T) {
	assert.Equal(t, "a lamp", ApplyStyle("a lamp", "Realistic"))
	assert.Equal(t, "a lamp, in oil painting style", ApplyStyle(" a lamp ", "Oil Painting"))
	assert.Equal(t, MediumPhotography, MediumForStyle("realistic"))
	assert.Equal(t, MediumArt, MediumForStyle("Sketch"))
	assert.True(t, KnownStyle("digital art"))
	assert.False(t, KnownStyle("Pixel"))
}
