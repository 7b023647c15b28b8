package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("WEBSOCKET_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("KAFKA_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.WebSocket.HeartbeatInterval != 5*time.Second {
		t.Fatalf("heartbeat = %v, want 5s", cfg.WebSocket.HeartbeatInterval)
	}
	if cfg.WebSocket.LivenessTimeout() != 10*time.Second {
		t.Fatalf("liveness = %v, want 10s", cfg.WebSocket.LivenessTimeout())
	}
	if !cfg.Kafka.Enabled {
		t.Fatal("kafka not enabled from env")
	}
	if cfg.Chat.HistoryLimit != 50 || cfg.Chat.HistoryMaxLimit != 100 {
		t.Fatalf("history limits = %d/%d", cfg.Chat.HistoryLimit, cfg.Chat.HistoryMaxLimit)
	}
	if cfg.Redis.Address != "localhost:6379" || cfg.Redis.StatusChannel != "links:status" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Database.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("conn max lifetime = %v", cfg.Database.ConnMaxLifetime)
	}
}
