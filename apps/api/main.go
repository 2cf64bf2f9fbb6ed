package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/auth"
	"github.com/localmart/realtime/pkg/config"
	"github.com/localmart/realtime/pkg/db"
	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/notify"
	"github.com/localmart/realtime/pkg/snowflake"
	"github.com/localmart/realtime/pkg/unread"
)

// server is the request/response collaborator surface: the snapshot reads
// the reconciler refetches after reconnect, plus the mutations that do not
// need a live connection.
type server struct {
	session  *db.Session
	rdb      *redis.Client
	producer *kafka.Writer
	ids      *snowflake.Node
	unread   *unread.Service
	notify   *notify.Store
	authn    *auth.Authenticator
	logger   *zap.Logger
}

// publish hands an event to the durable log; the gateways' fan-out
// consumers take it from there.
func (s *server) publish(ctx context.Context, ev model.Event, key string) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	op := func() error {
		return s.producer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Time:  time.Now(),
		})
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var cfg config.API
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

	ids, err := snowflake.NewNode(2)
	if err != nil {
		logger.Fatal("failed to initialize id generator", zap.Error(err))
	}

	s := &server{
		session: session,
		rdb:     rdb,
		producer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.Hash{},
		},
		ids:    ids,
		unread: unread.NewService(unread.NewScyllaStore(session)),
		notify: notify.NewStore(session),
		authn:  auth.New(cfg.JWTSecret, cfg.TokenTTL),
		logger: logger,
	}
	defer s.producer.Close()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.POST("/login", s.login)

	authed := r.Group("/", s.authRequired())
	{
		authed.GET("/conversations", s.listConversations)
		authed.POST("/conversations", s.startConversation)
		authed.GET("/conversations/:id/messages", s.listMessages)
		authed.POST("/conversations/:id/read", s.markConversationRead)
		authed.GET("/unread", s.unreadCounts)
		authed.GET("/users/search", s.searchUsers)
		authed.GET("/rooms/:id/viewers", s.roomViewers)

		authed.GET("/notifications", s.listNotifications)
		authed.GET("/notifications/unread-count", s.notificationUnreadCount)
		authed.POST("/notifications/:id/read", s.markNotificationRead)
		authed.POST("/notifications/read-all", s.markAllNotificationsRead)

		authed.POST("/internal/notifications", s.createNotification)
	}

	logger.Info("api listening", zap.String("addr", cfg.Addr))
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
