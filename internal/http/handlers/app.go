package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/middleware"
	"studio/internal/session"
	"studio/internal/studio"
)

const defaultMaxUploadBytes = 20 << 20

type App struct {
	Studio         *studio.Service
	Sessions       *session.Manager
	Logger         *infra.Logger
	MaxUploadBytes int64
}

func NewApp(svc *studio.Service, sessions *session.Manager, logger *infra.Logger, maxUpload int64) *App {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &App{Studio: svc, Sessions: sessions, Logger: infra.LoggerOrDiscard(logger), MaxUploadBytes: maxUpload}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

// fail maps errors that escape the action boundary.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrJobNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrNothingToExport):
		a.error(w, http.StatusNotFound, "nothing_to_export", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusServiceUnavailable, "timeout", "request cancelled")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("handler failed")
		a.error(w, http.StatusBadGateway, "upstream", "backend request failed")
	}
}

// outcome writes an action result. Operation failures travel as notices
// inside a 200 response.
func (a *App) outcome(w http.ResponseWriter, r *http.Request, out *studio.Outcome, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) call(r *http.Request) studio.Call {
	return studio.Call{
		SessionID: chi.URLParam(r, "sessionID"),
		Locale:    middleware.LocaleFromContext(r.Context()),
	}
}

// upload is one file part of a multipart request.
type upload struct {
	Filename string
	Data     []byte
}

// decodeAction reads action parameters into dst. Multipart bodies carry the
// parameters as JSON in the "params" field next to file parts; any other
// body is plain JSON.
func (a *App) decodeAction(w http.ResponseWriter, r *http.Request, dst any) (map[string]upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
		}
		return nil, nil
	}
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidInput)
	}
	if params := strings.TrimSpace(r.FormValue("params")); params != "" {
		if err := json.Unmarshal([]byte(params), dst); err != nil {
			return nil, fmt.Errorf("%w: invalid params", domain.ErrInvalidInput)
		}
	}
	files := map[string]upload{}
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable file %s", domain.ErrInvalidInput, field)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable file %s", domain.ErrInvalidInput, field)
		}
		files[field] = upload{Filename: headers[0].Filename, Data: data}
	}
	return files, nil
}

func (a *App) writeMedia(w http.ResponseWriter, r *http.Request, media *studio.Media) {
	if media.URL != "" {
		http.Redirect(w, r, media.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", media.MIME)
	if media.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": media.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(media.Data)
}
