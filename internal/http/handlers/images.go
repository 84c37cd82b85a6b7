package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/providers/bria"
	"studio/internal/studio"
)

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	NumResults   int    `json:"num_results"`
	AspectRatio  string `json:"aspect_ratio"`
	EnhanceImage bool   `json:"enhance_image"`
}

func (a *App) GenerateImages(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if _, err := a.decodeAction(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.GenerateImages(r.Context(), a.call(r), studio.ImageInput{
		Prompt:       req.Prompt,
		Style:        req.Style,
		NumResults:   req.NumResults,
		AspectRatio:  req.AspectRatio,
		EnhanceImage: req.EnhanceImage,
	})
	a.outcome(w, r, out, err)
}

type packshotRequest struct {
	BackgroundColor   string `json:"background_color"`
	SKU               string `json:"sku"`
	ForceRemoveBG     bool   `json:"force_rmbg"`
	ContentModeration bool   `json:"content_moderation"`
}

func (a *App) Packshot(w http.ResponseWriter, r *http.Request) {
	var req packshotRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.CreatePackshot(r.Context(), a.call(r), bria.PackshotParams{
		Image:             files["image"].Data,
		BackgroundColor:   req.BackgroundColor,
		SKU:               req.SKU,
		ForceRemoveBG:     req.ForceRemoveBG,
		ContentModeration: req.ContentModeration,
	})
	a.outcome(w, r, out, err)
}

type shadowRequest struct {
	Type              string  `json:"type"`
	BackgroundColor   string  `json:"background_color"`
	ShadowColor       string  `json:"shadow_color"`
	Offset            *[2]int `json:"offset"`
	Intensity         *int    `json:"intensity"`
	Blur              *int    `json:"blur"`
	SKU               string  `json:"sku"`
	ForceRemoveBG     bool    `json:"force_rmbg"`
	ContentModeration bool    `json:"content_moderation"`
}

func (a *App) Shadow(w http.ResponseWriter, r *http.Request) {
	var req shadowRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p := bria.ShadowParams{
		Image:             files["image"].Data,
		Type:              req.Type,
		BackgroundColor:   req.BackgroundColor,
		ShadowColor:       req.ShadowColor,
		OffsetY:           15,
		Intensity:         60,
		Blur:              20,
		SKU:               req.SKU,
		ForceRemoveBG:     req.ForceRemoveBG,
		ContentModeration: req.ContentModeration,
	}
	if req.Offset != nil {
		p.OffsetX, p.OffsetY = req.Offset[0], req.Offset[1]
	}
	if req.Intensity != nil {
		p.Intensity = *req.Intensity
	}
	if req.Blur != nil {
		p.Blur = *req.Blur
	}
	out, err := a.Studio.AddShadow(r.Context(), a.call(r), p)
	a.outcome(w, r, out, err)
}

type placementRequest struct {
	Type               string   `json:"placement_type"`
	ShotSize           [2]int   `json:"shot_size"`
	ManualPositions    []string `json:"manual_positions"`
	Padding            [4]int   `json:"padding"`
	ForegroundSize     *[2]int  `json:"foreground_size"`
	ForegroundLocation *[2]int  `json:"foreground_location"`
}

func (p placementRequest) placement() bria.Placement {
	return bria.Placement{
		Type:               p.Type,
		ShotSize:           p.ShotSize,
		ManualPositions:    p.ManualPositions,
		Padding:            p.Padding,
		ForegroundSize:     p.ForegroundSize,
		ForegroundLocation: p.ForegroundLocation,
	}
}

type lifestyleTextRequest struct {
	placementRequest
	SceneDescription    string `json:"scene_description"`
	NumResults          int    `json:"num_results"`
	Sync                bool   `json:"sync"`
	Fast                *bool  `json:"fast"`
	OptimizeDescription *bool  `json:"optimize_description"`
	OriginalQuality     bool   `json:"original_quality"`
	ExcludeElements     string `json:"exclude_elements"`
	SKU                 string `json:"sku"`
	ForceRemoveBG       bool   `json:"force_rmbg"`
	ContentModeration   bool   `json:"content_moderation"`
}

func (a *App) LifestyleText(w http.ResponseWriter, r *http.Request) {
	var req lifestyleTextRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.LifestyleByText(r.Context(), a.call(r), bria.LifestyleTextParams{
		Image:               files["image"].Data,
		SceneDescription:    req.SceneDescription,
		Placement:           req.placement(),
		NumResults:          atLeastOne(req.NumResults),
		Sync:                req.Sync,
		Fast:                boolOr(req.Fast, true),
		OptimizeDescription: boolOr(req.OptimizeDescription, true),
		OriginalQuality:     req.OriginalQuality,
		ExcludeElements:     req.ExcludeElements,
		SKU:                 req.SKU,
		ForceRemoveBG:       req.ForceRemoveBG,
		ContentModeration:   req.ContentModeration,
	})
	a.outcome(w, r, out, err)
}

type lifestyleImageRequest struct {
	placementRequest
	NumResults        int      `json:"num_results"`
	Sync              bool     `json:"sync"`
	OriginalQuality   bool     `json:"original_quality"`
	EnhanceReference  *bool    `json:"enhance_ref_image"`
	RefInfluence      *float64 `json:"ref_image_influence"`
	SKU               string   `json:"sku"`
	ForceRemoveBG     bool     `json:"force_rmbg"`
	ContentModeration bool     `json:"content_moderation"`
}

func (a *App) LifestyleImage(w http.ResponseWriter, r *http.Request) {
	var req lifestyleImageRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	influence := 1.0
	if req.RefInfluence != nil {
		influence = *req.RefInfluence
	}
	out, err := a.Studio.LifestyleByImage(r.Context(), a.call(r), bria.LifestyleImageParams{
		Image:             files["image"].Data,
		Reference:         files["reference"].Data,
		Placement:         req.placement(),
		NumResults:        atLeastOne(req.NumResults),
		Sync:              req.Sync,
		OriginalQuality:   req.OriginalQuality,
		EnhanceReference:  boolOr(req.EnhanceReference, true),
		RefInfluence:      influence,
		SKU:               req.SKU,
		ForceRemoveBG:     req.ForceRemoveBG,
		ContentModeration: req.ContentModeration,
	})
	a.outcome(w, r, out, err)
}

type fillRequest struct {
	Prompt            string `json:"prompt"`
	NegativePrompt    string `json:"negative_prompt"`
	NumResults        int    `json:"num_results"`
	Sync              bool   `json:"sync"`
	Seed              int    `json:"seed"`
	ContentModeration bool   `json:"content_moderation"`
}

func (a *App) Fill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.GenerativeFill(r.Context(), a.call(r), bria.FillParams{
		Image:             files["image"].Data,
		Mask:              files["mask"].Data,
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		NumResults:        atLeastOne(req.NumResults),
		Sync:              req.Sync,
		Seed:              req.Seed,
		ContentModeration: req.ContentModeration,
	})
	a.outcome(w, r, out, err)
}

type eraseRequest struct {
	ContentModeration bool `json:"content_moderation"`
}

func (a *App) Erase(w http.ResponseWriter, r *http.Request) {
	var req eraseRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.Erase(r.Context(), a.call(r), studio.EraseInput{
		Image:             files["image"].Data,
		ContentModeration: req.ContentModeration,
	})
	a.outcome(w, r, out, err)
}

func (a *App) CheckPending(w http.ResponseWriter, r *http.Request) {
	out, err := a.Studio.CheckPending(r.Context(), a.call(r))
	a.outcome(w, r, out, err)
}

func (a *App) DismissJob(w http.ResponseWriter, r *http.Request) {
	out, err := a.Studio.DismissJob(r.Context(), a.call(r), chi.URLParam(r, "jobID"))
	a.outcome(w, r, out, err)
}

func (a *App) DownloadResult(w http.ResponseWriter, r *http.Request) {
	media, err := a.Studio.DownloadResult(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeMedia(w, r, media)
}

func (a *App) ArchiveResults(w http.ResponseWriter, r *http.Request) {
	media, err := a.Studio.Archive(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeMedia(w, r, media)
}

func atLeastOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
