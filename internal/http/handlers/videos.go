package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/studio"
)

type videoRequest struct {
	Backend        string   `json:"backend"`
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	ImageURL       string   `json:"image_url"`
	Duration       int      `json:"duration"`
	FPS            int      `json:"fps"`
	AspectRatio    string   `json:"aspect_ratio"`
	MotionStrength *float64 `json:"motion_strength"`
	Seed           int      `json:"seed"`
	Async          bool     `json:"async"`
}

func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	files, err := a.decodeAction(w, r, &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	image := files["image"]
	out, err := a.Studio.GenerateVideo(r.Context(), a.call(r), studio.VideoInput{
		Backend:        req.Backend,
		Model:          req.Model,
		Prompt:         req.Prompt,
		Image:          image.Data,
		Filename:       image.Filename,
		ImageURL:       req.ImageURL,
		Duration:       req.Duration,
		FPS:            req.FPS,
		AspectRatio:    req.AspectRatio,
		MotionStrength: req.MotionStrength,
		Seed:           req.Seed,
		Async:          req.Async,
	})
	a.outcome(w, r, out, err)
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	out, err := a.Studio.VideoStatus(r.Context(), a.call(r), chi.URLParam(r, "jobID"))
	a.outcome(w, r, out, err)
}

func (a *App) VideoResult(w http.ResponseWriter, r *http.Request) {
	out, err := a.Studio.VideoResult(r.Context(), a.call(r), chi.URLParam(r, "jobID"))
	a.outcome(w, r, out, err)
}

func (a *App) LatestVideo(w http.ResponseWriter, r *http.Request) {
	media, err := a.Studio.LatestVideo(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeMedia(w, r, media)
}
