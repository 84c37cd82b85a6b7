package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
	"studio/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/video-models", app.VideoModels)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.RateLimitOptions{
			Limit:  opts.RateLimitPerMin,
			Window: time.Minute,
		})).Post("/", app.CreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.RateLimitOptions{
				Limit:  opts.RateLimitPerMin,
				Window: time.Minute,
				Key:    middleware.SessionKey("sessionID"),
			}))
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Put("/credentials", app.PutCredentials)
			r.Post("/prompt/enhance", app.EnhancePrompt)

			r.Route("/images", func(r chi.Router) {
				r.Post("/generate", app.GenerateImages)
				r.Post("/packshot", app.Packshot)
				r.Post("/shadow", app.Shadow)
				r.Post("/lifestyle-text", app.LifestyleText)
				r.Post("/lifestyle-image", app.LifestyleImage)
				r.Post("/fill", app.Fill)
				r.Post("/erase", app.Erase)
			})

			r.Post("/pending/check", app.CheckPending)
			r.Delete("/pending/{jobID}", app.DismissJob)

			r.Route("/videos", func(r chi.Router) {
				r.Post("/", app.GenerateVideo)
				r.Get("/latest", app.LatestVideo)
				r.Get("/{jobID}/status", app.VideoStatus)
				r.Post("/{jobID}/result", app.VideoResult)
			})

			r.Get("/result/download", app.DownloadResult)
			r.Get("/result/archive", app.ArchiveResults)
		})
	})

	return r
}
