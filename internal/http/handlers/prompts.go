package handlers

import (
	"net/http"
)

type enhanceRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) EnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if _, err := a.decodeAction(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.Studio.EnhancePrompt(r.Context(), a.call(r), req.Prompt)
	a.outcome(w, r, out, err)
}
