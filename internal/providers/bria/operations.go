package bria

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/domain"
)

// Placement types for lifestyle shots.
const (
	PlacementOriginal          = "original"
	PlacementAutomatic         = "automatic"
	PlacementManual            = "manual_placement"
	PlacementManualPadding     = "manual_padding"
	PlacementCustomCoordinates = "custom_coordinates"
)

// Shadow types accepted by AddShadow.
const (
	ShadowNatural = "natural"
	ShadowDrop    = "drop"
)

var placementTypes = map[string]bool{
	PlacementOriginal:          true,
	PlacementAutomatic:         true,
	PlacementManual:            true,
	PlacementManualPadding:     true,
	PlacementCustomCoordinates: true,
}

var manualPositions = map[string]bool{
	"upper_left": true, "upper_right": true, "bottom_left": true, "bottom_right": true,
	"right_center": true, "left_center": true, "upper_center": true,
	"bottom_center": true, "center_vertical": true, "center_horizontal": true,
}

var aspectRatios = map[string]bool{"1:1": true, "16:9": true, "9:16": true, "4:3": true, "3:4": true}

type PackshotParams struct {
	Image             []byte
	BackgroundColor   string
	SKU               string
	ForceRemoveBG     bool
	ContentModeration bool
}

type ShadowParams struct {
	Image             []byte
	Type              string
	BackgroundColor   string // empty keeps a transparent background
	ShadowColor       string
	OffsetX, OffsetY  int
	Intensity         int
	Blur              int
	SKU               string
	ForceRemoveBG     bool
	ContentModeration bool
}

// Placement holds the shared lifestyle placement settings.
type Placement struct {
	Type               string
	ShotSize           [2]int
	ManualPositions    []string
	Padding            [4]int // left, right, top, bottom
	ForegroundSize     *[2]int
	ForegroundLocation *[2]int
}

type LifestyleTextParams struct {
	Image               []byte
	SceneDescription    string
	Placement           Placement
	NumResults          int
	Sync                bool
	Fast                bool
	OptimizeDescription bool
	OriginalQuality     bool
	ExcludeElements     string
	SKU                 string
	ForceRemoveBG       bool
	ContentModeration   bool
}

type LifestyleImageParams struct {
	Image             []byte
	Reference         []byte
	Placement         Placement
	NumResults        int
	Sync              bool
	OriginalQuality   bool
	EnhanceReference  bool
	RefInfluence      float64
	SKU               string
	ForceRemoveBG     bool
	ContentModeration bool
}

type FillParams struct {
	Image             []byte
	Mask              []byte
	Prompt            string
	NegativePrompt    string
	NumResults        int
	Sync              bool
	Seed              int
	ContentModeration bool
}

type HDImageParams struct {
	Prompt            string
	NumResults        int
	AspectRatio       string
	Sync              bool
	EnhanceImage      bool
	Medium            string
	PromptEnhancement bool
	ContentModeration bool
}

// EnhancePrompt returns the backend's prompt variations payload.
func (c *Client) EnhancePrompt(ctx context.Context, apiKey, prompt string) (any, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	return c.post(ctx, apiKey, domain.OperationPromptEnhancement, "/prompt_enhancer", map[string]any{"prompt": prompt})
}

func (c *Client) RemoveBackground(ctx context.Context, apiKey string, image []byte, contentModeration bool) (any, error) {
	file, err := encodeImage("image", image)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, apiKey, domain.OperationBackgroundRemoval, "/background/remove", map[string]any{
		"file":               file,
		"content_moderation": contentModeration,
	})
}

func (c *Client) Packshot(ctx context.Context, apiKey string, p PackshotParams) (any, error) {
	file, err := encodeImage("image", p.Image)
	if err != nil {
		return nil, err
	}
	bg := p.BackgroundColor
	if bg == "" {
		bg = "#FFFFFF"
	}
	body := map[string]any{
		"file":               file,
		"background_color":   bg,
		"force_rmbg":         p.ForceRemoveBG,
		"content_moderation": p.ContentModeration,
	}
	putOptional(body, "sku", p.SKU)
	return c.post(ctx, apiKey, domain.OperationPackshot, "/product/packshot", body)
}

func (c *Client) AddShadow(ctx context.Context, apiKey string, p ShadowParams) (any, error) {
	shadowType := strings.ToLower(strings.TrimSpace(p.Type))
	if shadowType == "" {
		shadowType = ShadowNatural
	}
	if shadowType != ShadowNatural && shadowType != ShadowDrop {
		return nil, fmt.Errorf("%w: unsupported shadow type %q", domain.ErrInvalidInput, p.Type)
	}
	if p.Intensity < 0 || p.Intensity > 100 {
		return nil, fmt.Errorf("%w: shadow intensity must be within 0-100", domain.ErrInvalidInput)
	}
	if p.Blur < 0 || p.Blur > 50 {
		return nil, fmt.Errorf("%w: shadow blur must be within 0-50", domain.ErrInvalidInput)
	}
	file, err := encodeImage("image", p.Image)
	if err != nil {
		return nil, err
	}
	color := p.ShadowColor
	if color == "" {
		color = "#000000"
	}
	body := map[string]any{
		"file":               file,
		"type":               shadowType,
		"shadow_color":       color,
		"shadow_offset":      []int{p.OffsetX, p.OffsetY},
		"shadow_intensity":   p.Intensity,
		"shadow_blur":        p.Blur,
		"force_rmbg":         p.ForceRemoveBG,
		"content_moderation": p.ContentModeration,
	}
	putOptional(body, "background_color", p.BackgroundColor)
	putOptional(body, "sku", p.SKU)
	return c.post(ctx, apiKey, domain.OperationShadow, "/product/shadow", body)
}

func (c *Client) LifestyleByText(ctx context.Context, apiKey string, p LifestyleTextParams) (any, error) {
	if strings.TrimSpace(p.SceneDescription) == "" {
		return nil, fmt.Errorf("%w: scene description is required", domain.ErrInvalidInput)
	}
	if err := checkCount(p.NumResults, 8); err != nil {
		return nil, err
	}
	file, err := encodeImage("image", p.Image)
	if err != nil {
		return nil, err
	}
	body, err := placementBody(p.Placement)
	if err != nil {
		return nil, err
	}
	body["file"] = file
	body["scene_description"] = p.SceneDescription
	body["num_results"] = p.NumResults
	body["sync"] = p.Sync
	body["fast"] = p.Fast
	body["optimize_description"] = p.OptimizeDescription
	body["original_quality"] = p.OriginalQuality
	body["force_rmbg"] = p.ForceRemoveBG
	body["content_moderation"] = p.ContentModeration
	if !p.Fast {
		putOptional(body, "exclude_elements", p.ExcludeElements)
	}
	putOptional(body, "sku", p.SKU)
	return c.post(ctx, apiKey, domain.OperationLifestyleText, "/product/lifestyle_shot_by_text", body)
}

func (c *Client) LifestyleByImage(ctx context.Context, apiKey string, p LifestyleImageParams) (any, error) {
	if err := checkCount(p.NumResults, 8); err != nil {
		return nil, err
	}
	if p.RefInfluence < 0 || p.RefInfluence > 1 {
		return nil, fmt.Errorf("%w: reference influence must be within 0-1", domain.ErrInvalidInput)
	}
	file, err := encodeImage("image", p.Image)
	if err != nil {
		return nil, err
	}
	ref, err := encodeImage("reference image", p.Reference)
	if err != nil {
		return nil, err
	}
	body, err := placementBody(p.Placement)
	if err != nil {
		return nil, err
	}
	body["file"] = file
	body["ref_image_file"] = ref
	body["num_results"] = p.NumResults
	body["sync"] = p.Sync
	body["original_quality"] = p.OriginalQuality
	body["enhance_ref_image"] = p.EnhanceReference
	body["ref_image_influence"] = p.RefInfluence
	body["force_rmbg"] = p.ForceRemoveBG
	body["content_moderation"] = p.ContentModeration
	putOptional(body, "sku", p.SKU)
	return c.post(ctx, apiKey, domain.OperationLifestyleImage, "/product/lifestyle_shot_by_image", body)
}

func (c *Client) GenerativeFill(ctx context.Context, apiKey string, p FillParams) (any, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	if err := checkCount(p.NumResults, 4); err != nil {
		return nil, err
	}
	file, err := encodeImage("image", p.Image)
	if err != nil {
		return nil, err
	}
	mask, err := encodeImage("mask", p.Mask)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"file":               file,
		"mask_file":          mask,
		"prompt":             p.Prompt,
		"num_results":        p.NumResults,
		"sync":               p.Sync,
		"content_moderation": p.ContentModeration,
	}
	putOptional(body, "negative_prompt", p.NegativePrompt)
	if p.Seed != 0 {
		body["seed"] = p.Seed
	}
	return c.post(ctx, apiKey, domain.OperationGenerativeFill, "/gen_fill", body)
}

func (c *Client) EraseForeground(ctx context.Context, apiKey string, image []byte, contentModeration bool) (any, error) {
	file, err := encodeImage("image", image)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, apiKey, domain.OperationErase, "/erase_foreground", map[string]any{
		"file":               file,
		"content_moderation": contentModeration,
	})
}

func (c *Client) GenerateHD(ctx context.Context, apiKey string, p HDImageParams) (any, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	if err := checkCount(p.NumResults, 4); err != nil {
		return nil, err
	}
	ratio := p.AspectRatio
	if ratio == "" {
		ratio = "1:1"
	}
	if !aspectRatios[ratio] {
		return nil, fmt.Errorf("%w: unsupported aspect ratio %q", domain.ErrInvalidInput, ratio)
	}
	medium := p.Medium
	if medium == "" {
		medium = "photography"
	}
	body := map[string]any{
		"prompt":             p.Prompt,
		"num_results":        p.NumResults,
		"aspect_ratio":       ratio,
		"sync":               p.Sync,
		"enhance_image":      p.EnhanceImage,
		"medium":             medium,
		"prompt_enhancement": p.PromptEnhancement,
		"content_moderation": p.ContentModeration,
	}
	return c.post(ctx, apiKey, domain.OperationHDImage, "/text-to-image/hd/"+c.hdVersion, body)
}

func placementBody(p Placement) (map[string]any, error) {
	placement := p.Type
	if placement == "" {
		placement = PlacementOriginal
	}
	if !placementTypes[placement] {
		return nil, fmt.Errorf("%w: unsupported placement type %q", domain.ErrInvalidInput, p.Type)
	}
	shot := []int{1000, 1000}
	if placement != PlacementOriginal && p.ShotSize[0] > 0 && p.ShotSize[1] > 0 {
		shot = []int{p.ShotSize[0], p.ShotSize[1]}
	}
	positions := []string{"upper_left"}
	if placement == PlacementManual && len(p.ManualPositions) > 0 {
		positions = positions[:0]
		for _, pos := range p.ManualPositions {
			pos = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(pos), " ", "_"))
			if !manualPositions[pos] {
				return nil, fmt.Errorf("%w: unsupported manual position %q", domain.ErrInvalidInput, pos)
			}
			positions = append(positions, pos)
		}
	}
	padding := []int{0, 0, 0, 0}
	if placement == PlacementManualPadding {
		padding = p.Padding[:]
	}
	body := map[string]any{
		"placement_type":             placement,
		"shot_size":                  shot,
		"manual_placement_selection": positions,
		"padding_values":             padding,
	}
	if placement == PlacementCustomCoordinates {
		if p.ForegroundSize == nil || p.ForegroundLocation == nil {
			return nil, fmt.Errorf("%w: custom coordinates need foreground size and location", domain.ErrInvalidInput)
		}
		body["foreground_image_size"] = p.ForegroundSize[:]
		body["foreground_image_location"] = p.ForegroundLocation[:]
	}
	return body, nil
}

func checkCount(n, limit int) error {
	if n < 1 || n > limit {
		return fmt.Errorf("%w: number of results must be within 1-%d", domain.ErrInvalidInput, limit)
	}
	return nil
}

func putOptional(body map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		body[key] = v
	}
}
