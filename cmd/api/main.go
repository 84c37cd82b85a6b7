package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"

	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/poller"
	"studio/internal/providers/bria"
	"studio/internal/providers/video"
	"studio/internal/session"
	"studio/internal/storage"
	"studio/internal/studio"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	catalog, err := video.DefaultCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load video model catalog")
	}

	blobs := storage.NewMemoryStore(cfg.BlobMaxBytes)
	sessions := session.NewManager(session.Options{
		Env: cfg.CredentialEnv(),
		OnDelete: func(id string) {
			n := blobs.DeletePrefix(id + "/")
			logger.Debug().Str("session", id).Int("blobs", n).Msg("session media dropped")
		},
	})

	photo := bria.NewClient(bria.Options{
		BaseURL:        cfg.BriaBaseURL,
		HDModelVersion: cfg.BriaHDModelVersion,
		Logger:         &logger,
		RequestTimeout: cfg.RequestTimeout,
	})
	queue := video.NewFalClient(video.FalOptions{
		QueueURL:       cfg.FalQueueURL,
		StorageURL:     cfg.FalStorageURL,
		Logger:         &logger,
		RequestTimeout: cfg.RequestTimeout,
	})
	veo := video.NewVeoGenerator(video.VeoOptions{Model: cfg.VeoModel, Logger: &logger})
	readiness := poller.New(poller.Options{
		MaxAttempts: cfg.PollMaxAttempts,
		Delay:       cfg.PollDelay,
		Prober:      poller.NewHTTPProber(resty.New().SetTimeout(cfg.RequestTimeout)),
		Logger:      &logger,
	})

	svc := studio.New(studio.Options{
		Sessions: sessions,
		Photo:    photo,
		Queue:    queue,
		Veo:      veo,
		Catalog:  catalog,
		Poller:   readiness,
		Blobs:    blobs,
		Logger:   &logger,

		VideoTimeout: cfg.VideoSyncTimeout,
	})

	app := handlers.NewApp(svc, sessions, &logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
