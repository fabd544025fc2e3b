package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notelab/api/internal/access"
	"notelab/api/internal/app"
	"notelab/api/internal/config"
	"notelab/api/internal/email"
	"notelab/api/internal/export"
	"notelab/api/internal/notegit"
	"notelab/api/internal/search"
	"notelab/api/internal/session"
	"notelab/api/internal/store"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := store.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 60*time.Second)
	err = store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.HistoryDir).Msg("create history dir")
	}

	dataStore := store.NewPostgresStore(db)
	history := notegit.New(cfg.HistoryDir)

	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey, log)
		log.Info().Str("url", cfg.MeiliURL).Msg("meilisearch enabled")
	}
	searchAccess := access.NewResolver(dataStore, log)
	searchService := search.NewService(meili, search.NewPgFTS(db), searchAccess, log)
	if meili != nil {
		go searchService.ReindexAllFromPG(context.Background())
	}

	exporter := export.NewService()
	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	var service *app.Service
	if cfg.RedisURL != "" {
		sessions, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer sessions.Close()
		log.Info().Msg("redis session store enabled")
		service = app.NewWithSessionStore(cfg, dataStore, sessions, history, searchService, exporter, mail, log)
	} else {
		service = app.New(cfg, dataStore, history, searchService, exporter, mail, log)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}
