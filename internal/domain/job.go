package domain

import (
	"fmt"
	"maps"
	"time"
)

// OperationKind enumerates the generation operations a session can submit.
type OperationKind string

const (
	OperationPackshot       OperationKind = "packshot"
	OperationShadow         OperationKind = "shadow"
	OperationLifestyleText  OperationKind = "lifestyle_text"
	OperationLifestyleImage OperationKind = "lifestyle_image"
	OperationGenerativeFill OperationKind = "generative_fill"
	OperationErase          OperationKind = "erase"
	OperationHDImage        OperationKind = "hd_image"
	OperationVideo          OperationKind = "video"

	// auxiliary kinds, never produce pending jobs
	OperationBackgroundRemoval OperationKind = "background_removal"
	OperationPromptEnhancement OperationKind = "prompt_enhancement"
)

// GenerationRequest is one submitted action. Fields are only readable, so a
// request cannot change after NewGenerationRequest returns it.
type GenerationRequest struct {
	kind       OperationKind
	params     map[string]any
	sync       bool
	numResults int
}

// NewGenerationRequest copies params; later edits to the caller's map are
// not observed.
func NewGenerationRequest(kind OperationKind, params map[string]any, sync bool, numResults int) GenerationRequest {
	return GenerationRequest{kind: kind, params: maps.Clone(params), sync: sync, numResults: numResults}
}

func (r GenerationRequest) Kind() OperationKind { return r.kind }
func (r GenerationRequest) Sync() bool          { return r.sync }
func (r GenerationRequest) NumResults() int     { return r.numResults }

// Params returns a copy of the named parameters.
func (r GenerationRequest) Params() map[string]any { return maps.Clone(r.params) }

// Param looks up one named parameter.
func (r GenerationRequest) Param(name string) (any, bool) {
	v, ok := r.params[name]
	return v, ok
}

// Prompt is the text echoed into the session, empty for image-only actions.
func (r GenerationRequest) Prompt() string {
	s, _ := r.params["prompt"].(string)
	return s
}

// GenerationResult holds exactly one of URL, URLs or Pending.
type GenerationResult struct {
	URL     string   `json:"url,omitempty"`
	URLs    []string `json:"urls,omitempty"`
	Pending []string `json:"pending,omitempty"`
}

// Validate enforces the single-variant invariant.
func (r GenerationResult) Validate() error {
	set := 0
	if r.URL != "" {
		set++
	}
	if len(r.URLs) > 0 {
		set++
	}
	if len(r.Pending) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("generation result must carry exactly one variant, got %d", set)
	}
	return nil
}

// IsPending reports whether the result still awaits polling.
func (r GenerationResult) IsPending() bool {
	return len(r.Pending) > 0
}

// Ready returns the completed URLs in order.
func (r GenerationResult) Ready() []string {
	if r.URL != "" {
		return []string{r.URL}
	}
	return r.URLs
}

// PendingJob tracks one outstanding output. Image jobs poll URL; video jobs
// are addressed by the backend RequestID.
type PendingJob struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	URL       string        `json:"url,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Model     string        `json:"model,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Attempts  int           `json:"attempts"`
}

// IsVideo reports whether the job is tracked by request id rather than URL.
func (j PendingJob) IsVideo() bool {
	return j.RequestID != ""
}
