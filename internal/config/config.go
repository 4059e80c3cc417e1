package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit process configuration. It is loaded once at startup
// and passed into constructors; pipeline code never reads ambient state.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Mongo    MongoConfig
	Uploads  UploadConfig
	Session  SessionConfig
	Whisper  WhisperConfig
	LLM      LLMConfig
	Identity IdentityConfig
	Redis    RedisConfig
	RabbitMQ RabbitConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type UploadConfig struct {
	Dir            string
	Retain         bool
	ExtractTimeout time.Duration
}

type SessionConfig struct {
	QuestionCount int
	WorkerCount   int
	QueueSize     int
	EnqueueWait   time.Duration
}

type WhisperConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type LLMConfig struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	PromptFile  string
}

type IdentityConfig struct {
	URL     string
	Timeout time.Duration
}

type RedisConfig struct {
	Enable    bool
	Address   string
	Namespace string
	LockTTL   time.Duration
}

type RabbitConfig struct {
	Enable       bool
	Address      string
	Port         int
	Username     string
	Password     string
	PublishQueue string
	ExpireTime   int32
}

type TracingConfig struct {
	Enable  bool
	Service string
}

// Load reads configuration from an optional yaml file and the environment.
// Environment variables override file values, with dots mapped to
// underscores (e.g. SERVER_PORT for server.port).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		// A config file is optional; defaults plus env are enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
			Timeout:  v.GetDuration("mongo.timeout"),
		},
		Uploads: UploadConfig{
			Dir:            v.GetString("uploads.dir"),
			Retain:         v.GetBool("uploads.retain"),
			ExtractTimeout: v.GetDuration("uploads.extract_timeout"),
		},
		Session: SessionConfig{
			QuestionCount: v.GetInt("session.question_count"),
			WorkerCount:   v.GetInt("session.worker_count"),
			QueueSize:     v.GetInt("session.queue_size"),
			EnqueueWait:   v.GetDuration("session.enqueue_wait"),
		},
		Whisper: WhisperConfig{
			URL:     v.GetString("whisper.url"),
			APIKey:  v.GetString("whisper.api_key"),
			Timeout: v.GetDuration("whisper.timeout"),
		},
		LLM: LLMConfig{
			URL:         v.GetString("llm.url"),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Timeout:     v.GetDuration("llm.timeout"),
			PromptFile:  v.GetString("llm.prompt_file"),
		},
		Identity: IdentityConfig{
			URL:     v.GetString("identity.url"),
			Timeout: v.GetDuration("identity.timeout"),
		},
		Redis: RedisConfig{
			Enable:    v.GetBool("redis.enable"),
			Address:   v.GetString("redis.address"),
			Namespace: v.GetString("redis.namespace"),
			LockTTL:   v.GetDuration("redis.lock_ttl"),
		},
		RabbitMQ: RabbitConfig{
			Enable:       v.GetBool("rabbitmq.enable"),
			Address:      v.GetString("rabbitmq.address"),
			Port:         v.GetInt("rabbitmq.port"),
			Username:     v.GetString("rabbitmq.username"),
			Password:     v.GetString("rabbitmq.password"),
			PublishQueue: v.GetString("rabbitmq.publish_queue"),
			ExpireTime:   v.GetInt32("rabbitmq.expire_time"),
		},
		Tracing: TracingConfig{
			Enable:  v.GetBool("tracing.enable"),
			Service: v.GetString("tracing.service"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.pretty", false)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "interviewprep")
	v.SetDefault("mongo.timeout", "10s")

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.retain", false)
	v.SetDefault("uploads.extract_timeout", "60s")

	v.SetDefault("session.question_count", 1)
	v.SetDefault("session.worker_count", 4)
	v.SetDefault("session.queue_size", 16)
	v.SetDefault("session.enqueue_wait", "2s")

	v.SetDefault("whisper.url", "")
	v.SetDefault("whisper.timeout", "60s")

	v.SetDefault("llm.url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "45s")
	v.SetDefault("llm.prompt_file", "")

	v.SetDefault("identity.url", "")
	v.SetDefault("identity.timeout", "10s")

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.namespace", "interviewprep")
	v.SetDefault("redis.lock_ttl", "5m")

	v.SetDefault("rabbitmq.enable", false)
	v.SetDefault("rabbitmq.address", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.username", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.publish_queue", "interview.events")
	v.SetDefault("rabbitmq.expire_time", 60000)

	v.SetDefault("tracing.enable", false)
	v.SetDefault("tracing.service", "interviewprep")
}
