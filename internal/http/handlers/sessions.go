package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/infra/credentials"
)

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusCreated, a.Sessions.Create())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// credentialsRequest carries session keys. A null field is left alone; an
// empty string clears the session key.
type credentialsRequest struct {
	Bria   *string `json:"bria"`
	Fal    *string `json:"fal"`
	Google *string `json:"google"`
}

func (a *App) PutCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if _, err := a.decodeAction(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	keys := map[string]string{}
	for backend, v := range map[string]*string{
		credentials.BackendBria:   req.Bria,
		credentials.BackendFal:    req.Fal,
		credentials.BackendGoogle: req.Google,
	} {
		if v != nil {
			keys[backend] = *v
		}
	}
	out, err := a.Studio.SetCredentials(r.Context(), a.call(r), keys)
	a.outcome(w, r, out, err)
}
