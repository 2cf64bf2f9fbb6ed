// Package config centralizes environment-driven configuration for the three
// services. A .env file is honored in development; real deployments set the
// environment directly.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Gateway struct {
	Addr         string        `env:"GATEWAY_ADDR" envDefault:":8080"`
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envDefault:"localhost:19092" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"realtime-events"`
	ScyllaHosts  []string      `env:"SCYLLA_HOSTS" envDefault:"localhost:9042" envSeparator:","`
	Keyspace     string        `env:"SCYLLA_KEYSPACE" envDefault:"realtime"`
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

type API struct {
	Addr         string        `env:"API_ADDR" envDefault:":8081"`
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envDefault:"localhost:19092" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"realtime-events"`
	ScyllaHosts  []string      `env:"SCYLLA_HOSTS" envDefault:"localhost:9042" envSeparator:","`
	Keyspace     string        `env:"SCYLLA_KEYSPACE" envDefault:"realtime"`
	RedisAddr    string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

type Messaging struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:19092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"realtime-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"messaging-service-group"`
	ScyllaHosts  []string `env:"SCYLLA_HOSTS" envDefault:"localhost:9042" envSeparator:","`
	Keyspace     string   `env:"SCYLLA_KEYSPACE" envDefault:"realtime"`
	RedisAddr    string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
}

// Load parses environment variables into cfg. A missing .env file is not an
// error.
func Load(cfg any) error {
	_ = godotenv.Load()
	return env.Parse(cfg)
}
