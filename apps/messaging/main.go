package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/config"
	"github.com/localmart/realtime/pkg/db"
)

// Schema bootstrap mirrors an MVP workflow: in production this moves to a
// migration tool.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id text,
		id bigint,
		sender_id text,
		body text,
		created_at timestamp,
		PRIMARY KEY (conversation_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,

	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		conversation_id text,
		other_user_id text,
		last_message_id bigint,
		last_message_body text,
		last_message_sender text,
		last_activity timestamp,
		PRIMARY KEY (user_id, conversation_id)
	)`,

	`CREATE TABLE IF NOT EXISTS read_receipts (
		message_id bigint,
		user_id text,
		read_at timestamp,
		PRIMARY KEY (message_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_counters (
		user_id text,
		conversation_id text,
		unread_count counter,
		PRIMARY KEY (user_id, conversation_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		user_id text,
		id bigint,
		type text,
		title text,
		body text,
		action_url text,
		read boolean,
		read_at timestamp,
		created_at timestamp,
		PRIMARY KEY (user_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,

	`CREATE TABLE IF NOT EXISTS notification_counters (
		user_id text,
		unread_count counter,
		PRIMARY KEY (user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id text,
		user_name text,
		role text,
		PRIMARY KEY (user_id)
	)`,
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var cfg config.Messaging
	if err := config.Load(&cfg); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Create the keyspace through a system-keyspace session first.
	sysSession, err := db.NewSession(cfg.ScyllaHosts, "system")
	if err != nil {
		logger.Fatal("failed to connect to ScyllaDB", zap.Error(err))
	}
	err = sysSession.Query(`CREATE KEYSPACE IF NOT EXISTS ` + cfg.Keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
	sysSession.Close()
	if err != nil {
		logger.Fatal("failed to create keyspace", zap.Error(err))
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
	if err != nil {
		logger.Fatal("failed to connect to keyspace", zap.Error(err))
	}
	defer session.Close()

	for _, ddl := range schema {
		if err := session.Query(ddl).Exec(); err != nil {
			logger.Fatal("failed to create table", zap.Error(err))
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, session, rdb, logger)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("messaging consumer starting", zap.Strings("brokers", cfg.KafkaBrokers))
	consumer.Run(ctx)
}
