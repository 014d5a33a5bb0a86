package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"social-agent/domain/repository"
	"social-agent/infrastructure/cache"
	"social-agent/infrastructure/clients/facebook"
	"social-agent/infrastructure/clients/instagram"
	"social-agent/infrastructure/clients/tiktok"
	"social-agent/infrastructure/configuration"
	"social-agent/infrastructure/logger"
	"social-agent/infrastructure/persistence"
	"social-agent/infrastructure/realtime"
	httpHandler "social-agent/interfaces/http"
	"social-agent/server"
	"social-agent/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App
	upload := configuration.C.Upload

	if err := os.MkdirAll(upload.Dir, 0o755); err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot create upload directory")
		os.Exit(1)
	}

	psqlDb, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PostgreSQL not available - continuing without publish history")
		psqlDb = nil
	} else if err := persistence.EnsurePublishSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring publish schema")
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - auth status will be checked live on every request")
		redisClient = nil
	}
	statusCache := cache.NewAuthStatusCache(redisClient)

	credStore := persistence.NewFileCredentialStore(upload.CredentialDir)

	facebookClient := facebook.NewClient(facebook.Config{
		AppID:       configuration.C.OAuth.Facebook.ClientID,
		AppSecret:   configuration.C.OAuth.Facebook.ClientSecret,
		RedirectURI: configuration.C.OAuth.Facebook.RedirectURI,
		PageID:      configuration.C.OAuth.Facebook.PageID,
	}, credStore)
	instagramClient := instagram.NewClient(instagram.Config{
		AppID:         configuration.C.OAuth.Instagram.ClientID,
		AppSecret:     configuration.C.OAuth.Instagram.ClientSecret,
		RedirectURI:   configuration.C.OAuth.Instagram.RedirectURI,
		PublicBaseURL: upload.PublicBaseURL,
	}, credStore)
	tiktokClient := tiktok.NewClient(tiktok.Config{
		ClientKey:    configuration.C.OAuth.TikTok.ClientID,
		ClientSecret: configuration.C.OAuth.TikTok.ClientSecret,
		RedirectURI:  configuration.C.OAuth.TikTok.RedirectURI,
	}, credStore)

	platforms := []repository.ISocialPlatform{facebookClient, instagramClient, tiktokClient}

	publishHub := realtime.NewPublishHub()
	opts := []usecase.Option{usecase.WithBroadcaster(publishHub.Broadcast)}
	if psqlDb != nil {
		opts = append(opts, usecase.WithHistory(persistence.NewPublishRepository(psqlDb)))
	}
	publishUsecase := usecase.NewPublishUsecase(platforms, opts...)

	authHandler := httpHandler.NewAuthHandler(publishUsecase, statusCache)
	publishHandler := httpHandler.NewPublishHandler(publishUsecase)

	router := server.InitiateRouter(authHandler, publishHandler, publishHub)

	// Janitor for uploads orphaned by a crash mid-publish.
	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cleanStaleUploads(upload.Dir, 24*time.Hour)
			}
		}
	})

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

func cleanStaleUploads(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err == nil {
				logger.GetLogger().WithField("file", path).Info("Removed stale upload")
			}
		}
	}
}
