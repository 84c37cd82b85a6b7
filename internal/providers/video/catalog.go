package video

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"studio/internal/domain"
)

//go:embed models.yaml
var modelsYAML []byte

// Model describes one image-to-video model on the job queue.
type Model struct {
	Key                    string `yaml:"key" json:"key"`
	ID                     string `yaml:"id" json:"id"`
	Name                   string `yaml:"name" json:"name"`
	Description            string `yaml:"description" json:"description"`
	MaxDuration            int    `yaml:"max_duration" json:"max_duration"`
	SupportsFPS            bool   `yaml:"supports_fps" json:"supports_fps"`
	SupportsMotionStrength bool   `yaml:"supports_motion_strength" json:"supports_motion_strength"`
}

// Catalog is the static, read-only model table.
type Catalog struct {
	models []Model
	index  map[string]Model
}

// DefaultCatalog parses the embedded model table.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(modelsYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Models []Model `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("video: parse catalog: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, errors.New("video: catalog is empty")
	}
	c := &Catalog{index: make(map[string]Model, len(doc.Models)*2)}
	for _, m := range doc.Models {
		if m.Key == "" || m.ID == "" {
			return nil, fmt.Errorf("video: catalog entry %q is missing key or id", m.Name)
		}
		if m.MaxDuration <= 0 {
			return nil, fmt.Errorf("video: catalog entry %q needs a positive max_duration", m.Key)
		}
		c.models = append(c.models, m)
		c.index[m.Key] = m
		c.index[m.ID] = m
	}
	return c, nil
}

// Models returns the models in declaration order.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Lookup finds a model by catalog key or backend id. Empty selects the first model.
func (c *Catalog) Lookup(keyOrID string) (Model, bool) {
	keyOrID = strings.TrimSpace(keyOrID)
	if keyOrID == "" {
		return c.models[0], true
	}
	m, ok := c.index[keyOrID]
	return m, ok
}

// Params are the image-to-video arguments. Zero values are omitted.
type Params struct {
	ImageURL       string
	Prompt         string
	Duration       int
	FPS            int
	AspectRatio    string
	MotionStrength *float64
	Seed           int
}

// Constrain drops arguments the model does not support and rejects values
// outside its limits.
func (m Model) Constrain(p Params) (Params, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return p, fmt.Errorf("%w: video prompt is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(p.ImageURL) == "" {
		return p, fmt.Errorf("%w: image url is required", domain.ErrInvalidInput)
	}
	if p.Duration < 0 || p.Duration > m.MaxDuration {
		return p, fmt.Errorf("%w: %s supports at most %d seconds", domain.ErrInvalidInput, m.Name, m.MaxDuration)
	}
	if !m.SupportsFPS {
		p.FPS = 0
	}
	if !m.SupportsMotionStrength {
		p.MotionStrength = nil
	}
	if p.MotionStrength != nil && (*p.MotionStrength < 0 || *p.MotionStrength > 1) {
		return p, fmt.Errorf("%w: motion strength must be within 0-1", domain.ErrInvalidInput)
	}
	if p.Seed < 0 {
		p.Seed = 0
	}
	return p, nil
}

func (p Params) arguments() map[string]any {
	args := map[string]any{
		"image_url": p.ImageURL,
		"prompt":    p.Prompt,
	}
	if p.Duration > 0 {
		args["duration"] = p.Duration
	}
	if p.FPS > 0 {
		args["fps"] = p.FPS
	}
	if p.AspectRatio != "" {
		args["aspect_ratio"] = p.AspectRatio
	}
	if p.MotionStrength != nil {
		args["motion_strength"] = *p.MotionStrength
	}
	if p.Seed != 0 {
		args["seed"] = p.Seed
	}
	return args
}
