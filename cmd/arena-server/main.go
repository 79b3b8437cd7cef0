package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/archive"
	"github.com/chess-arena/server/internal/challenge"
	appcfg "github.com/chess-arena/server/internal/config"
	"github.com/chess-arena/server/internal/conndir"
	"github.com/chess-arena/server/internal/engine"
	"github.com/chess-arena/server/internal/msgcat"
	"github.com/chess-arena/server/internal/notify"
	"github.com/chess-arena/server/internal/obslog"
	"github.com/chess-arena/server/internal/profile"
	"github.com/chess-arena/server/internal/reconnect"
	"github.com/chess-arena/server/internal/session"
	"github.com/chess-arena/server/internal/wsio"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	profiles, err := profile.NewStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("profile store init error: %v", err)
	}

	// The archive is optional: without DATABASE_URL games simply aren't
	// persisted to postgres.
	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
	}

	dir := conndir.New()
	eng := engine.New(engine.Deps{
		Cfg:        cfg,
		Dir:        dir,
		Challenges: challenge.NewRegistry(nil),
		Sessions:   session.NewStore(nil),
		Timers:     reconnect.NewSupervisor(),
		Profiles:   profiles,
		Archive:    repo,
		Notifier:   notify.NewAnnouncer(cfg.ResultWebhookURL),
		Catalog:    cat,
	})

	ws := wsio.NewServer(eng, dir, cfg.AllowedOrigins)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = profiles.Close()
	if repo != nil {
		_ = repo.Close()
	}
}
