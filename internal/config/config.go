// Package config loads the replica configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selectors for the persistence gateway, lease store and audit sink.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendKafka = "kafka"
	BackendNone  = "none"
)

// Config is the full configuration surface of a replica.
type Config struct {
	// ReplicaID identifies this replica in lease ownership.
	ReplicaID int

	// HeartbeatInterval is the lease refresh period while leading and the
	// follower poll period.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is the staleness threshold after which followers treat
	// the leader as dead and clear the lease.
	HeartbeatTimeout time.Duration

	// SessionTTL is the lifetime of issued session tokens.
	SessionTTL time.Duration
	// AuthSecret signs and verifies session tokens. Never defaulted; its
	// compromise is a total auth bypass.
	AuthSecret string
	// BotPrefixes enumerates automation-account name prefixes that bypass
	// token validation. Empty (the default) disables the bypass.
	BotPrefixes []string

	// BrokerAddr and ProxyAddr are the relay substrate endpoints the leader
	// connects to (request broker and fan-out proxy).
	BrokerAddr string
	ProxyAddr  string

	// StoreBackend selects the persistence gateway: "file" or "redis".
	StoreBackend string
	// LeaseBackend selects the lease store: "file" or "redis".
	LeaseBackend string
	// RedisAddr is the Redis endpoint when either backend is "redis".
	RedisAddr string
	// DataDir holds the file-backed collections and the lease lock file.
	DataDir string

	// AuditBackend selects the audit log sink: "file", "kafka" or "none".
	AuditBackend string
	// AuditPath is the JSONL file for the "file" sink.
	AuditPath string
	// KafkaBrokers and KafkaTopic configure the "kafka" sink.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the configuration from COORD_* environment variables, applying
// defaults for everything except the auth secret.
func Load() Config {
	dataDir := getEnv("COORD_DATA_DIR", "./data")
	return Config{
		ReplicaID:         getEnvInt("COORD_REPLICA_ID", 0),
		HeartbeatInterval: getEnvDuration("COORD_HEARTBEAT_INTERVAL", 2*time.Second),
		HeartbeatTimeout:  getEnvDuration("COORD_HEARTBEAT_TIMEOUT", 5*time.Second),
		SessionTTL:        getEnvDuration("COORD_SESSION_TTL", 8*time.Hour),
		AuthSecret:        os.Getenv("COORD_AUTH_SECRET"),
		BotPrefixes:       getEnvList("COORD_BOT_PREFIXES"),
		BrokerAddr:        getEnv("COORD_BROKER_ADDR", "tcp://broker:5556"),
		ProxyAddr:         getEnv("COORD_PROXY_ADDR", "tcp://proxy:5558"),
		StoreBackend:      getEnv("COORD_STORE_BACKEND", BackendFile),
		LeaseBackend:      getEnv("COORD_LEASE_BACKEND", BackendFile),
		RedisAddr:         getEnv("COORD_REDIS_ADDR", "localhost:6379"),
		DataDir:           dataDir,
		AuditBackend:      getEnv("COORD_AUDIT_BACKEND", BackendFile),
		AuditPath:         getEnv("COORD_AUDIT_PATH", dataDir+"/messages.log"),
		KafkaBrokers:      getEnvList("COORD_KAFKA_BROKERS"),
		KafkaTopic:        getEnv("COORD_KAFKA_TOPIC", "coordinator-audit"),
	}
}

// Validate checks the configuration for values that would make the replica
// unsafe to run.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("auth secret is required (set COORD_AUTH_SECRET)")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout (%s) must exceed the interval (%s)",
			c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	switch c.StoreBackend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	switch c.LeaseBackend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown lease backend %q", c.LeaseBackend)
	}
	switch c.AuditBackend {
	case BackendFile, BackendNone:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("kafka audit backend requires COORD_KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown audit backend %q", c.AuditBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
