package config

import (
	"time"

	pkgconfig "github.com/dananaoo/bazarlink/pkg/config"
	"github.com/dananaoo/bazarlink/pkg/database"
	"github.com/dananaoo/bazarlink/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
	Auth      AuthConfig
	Database  database.Config
	Redis     RedisConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Kafka     KafkaConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Host string
	Port int
}

// WebSocketConfig tunes live connections. A connection that sends no ping
// frame and answers no transport ping for two heartbeat intervals is
// closed.
type WebSocketConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	SendBuffer        int           `mapstructure:"send_buffer"`
}

// LivenessTimeout is the silence after which a connection is evicted.
func (c WebSocketConfig) LivenessTimeout() time.Duration {
	return 2 * c.HeartbeatInterval
}

type ChatConfig struct {
	PersistTimeout     time.Duration `mapstructure:"persist_timeout"`
	SequencerIdleGrace time.Duration `mapstructure:"sequencer_idle_grace"`
	SequencerQueueSize int           `mapstructure:"sequencer_queue_size"`
	RevalidateInterval time.Duration `mapstructure:"revalidate_interval"`
	MaxContentRunes    int           `mapstructure:"max_content_runes"`
	HistoryLimit       int           `mapstructure:"history_limit"`
	HistoryMaxLimit    int           `mapstructure:"history_max_limit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
}

type RedisConfig struct {
	pubsub.RedisConfig `mapstructure:",squash"`

	Enabled       bool
	StatusChannel string `mapstructure:"status_channel"`
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Prefix  string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50090)
	v.SetDefault("websocket.heartbeat_interval", "30s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("chat.persist_timeout", "5s")
	v.SetDefault("chat.sequencer_idle_grace", "2m")
	v.SetDefault("chat.sequencer_queue_size", 64)
	v.SetDefault("chat.revalidate_interval", "1m")
	v.SetDefault("chat.max_content_runes", 4000)
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.history_max_limit", 100)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bazarlink")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "bazarlink.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.status_channel", pubsub.ChannelLinkStatus)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 30)
	v.SetDefault("ratelimit.window", "10s")
	v.SetDefault("ratelimit.prefix", "chat:ratelimit")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat.messages")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("auth.jwt_secret", "SECRET_KEY")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.HeartbeatInterval = pkgconfig.Duration(v, "websocket.heartbeat_interval", 30*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Chat.PersistTimeout = pkgconfig.Duration(v, "chat.persist_timeout", 5*time.Second)
	cfg.Chat.SequencerIdleGrace = pkgconfig.Duration(v, "chat.sequencer_idle_grace", 2*time.Minute)
	cfg.Chat.RevalidateInterval = pkgconfig.Duration(v, "chat.revalidate_interval", time.Minute)
	cfg.Database.ConnMaxLifetime = pkgconfig.Duration(v, "database.conn_max_lifetime", 30*time.Minute)
	cfg.Redis.ReadTimeout = pkgconfig.Duration(v, "redis.read_timeout", 3*time.Second)
	cfg.Redis.WriteTimeout = pkgconfig.Duration(v, "redis.write_timeout", 3*time.Second)
	cfg.RateLimit.Window = pkgconfig.Duration(v, "ratelimit.window", 10*time.Second)

	return &cfg, nil
}
