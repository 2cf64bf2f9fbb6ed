package main

import (
	"context"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/auth"
	"github.com/localmart/realtime/pkg/config"
	"github.com/localmart/realtime/pkg/db"
	"github.com/localmart/realtime/pkg/notify"
	"github.com/localmart/realtime/pkg/snowflake"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var cfg config.Gateway
	if err := config.Load(&cfg); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		logger.Fatal("failed to connect to ScyllaDB", zap.Error(err))
	}
	defer session.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// Node id should be unique per instance (env var or service discovery).
	nodeID := int64(1)
	ids, err := snowflake.NewNode(nodeID)
	if err != nil {
		logger.Fatal("failed to initialize id generator", zap.Error(err))
	}

	authn := auth.New(cfg.JWTSecret, cfg.TokenTTL)
	presence := newViewerPresence(rdb, logger)
	hub := NewHub(cfg.KafkaBrokers, cfg.KafkaTopic, &store{session: session}, notify.NewStore(session), presence, ids, logger)
	go hub.Run(context.Background())

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, authn, w, r)
	})
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("gateway listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
