package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/readtrack/internal/api"
	"github.com/yangwenmai/readtrack/internal/config"
	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/live"
	"github.com/yangwenmai/readtrack/internal/logger"
	"github.com/yangwenmai/readtrack/internal/readstate"
	"github.com/yangwenmai/readtrack/internal/session"
	"github.com/yangwenmai/readtrack/internal/store"
	"github.com/yangwenmai/readtrack/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer log.Sync()

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error("open db", logger.String("path", cfg.DBPath), logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Writes are reported to the hub so live queries re-run.
	hub := live.NewHub()
	s, err := store.New(db, store.WithNotifier(hub))
	if err != nil {
		log.Error("init store", logger.Error(err))
		os.Exit(1)
	}
	engine := readstate.NewEngine(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Content service: stub, HTTP, optionally behind Redis.
	var contentSvc content.Service
	if cfg.UseContentStub() {
		log.Info("CONTENT_API_URL not set, using stub content")
		contentSvc = content.NewStubService()
	} else {
		log.Info("using content API", logger.String("url", cfg.ContentAPIURL))
		contentSvc = content.NewHTTPClient(cfg.ContentAPIURL, cfg.ContentAPITimeout)
	}

	if cfg.UseRedisCache() {
		rdb := content.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		cache := content.NewRedisCache(rdb, "readtrack:content:")

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := cache.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Warn("redis unreachable, content cache disabled", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			cached := content.NewCachedService(contentSvc, cache, cfg.CacheTTL, log)
			contentSvc = cached
			if cfg.PrefetchInterval > 0 {
				go worker.NewPrefetcher(cached, cfg.PrefetchInterval, log).Start(ctx)
			}
		}
	}

	policy := readstate.Policy{
		DoneThresholdPx:      cfg.DoneThresholdPx,
		MinScrollYToComplete: cfg.MinScrollYToComplete,
		MinOverflowToScroll:  cfg.MinOverflowToScroll,
	}
	sessions := session.NewManager(engine, s, hub, policy, log)
	go worker.NewSweeper(sessions, cfg.SessionIdleTimeout, log).Start(ctx)

	// Start API server.
	srv := api.New(api.Deps{
		Store:        s,
		Engine:       engine,
		Sessions:     sessions,
		Hub:          hub,
		Content:      contentSvc,
		Previewer:    content.NewReferencePreviewer(cfg.ContentAPITimeout),
		Log:          log,
		CORSOrigin:   cfg.CORSOrigin,
		ShareBaseURL: cfg.ShareBaseURL,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown. Cancelling ctx also ends open live streams.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", logger.Error(err))
		}
	}()

	log.Info("readtrack server listening", logger.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", logger.Error(err))
		os.Exit(1)
	}
	<-stopped
	sessions.CloseAll()
}
