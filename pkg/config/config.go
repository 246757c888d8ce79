package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Supabase SupabaseConfig
	Fallback FallbackConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Trigger  TriggerConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// SupabaseConfig points at the primary analytical store (PostgREST).
// When URL or ServiceKey is empty the whole service degrades to the
// REST fallback API as its only data source.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	TimeoutSec int
	PageSize   int
	MaxPages   int
}

type FallbackConfig struct {
	BaseURL    string
	TimeoutSec int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string
	Temperature  float32
	MaxTokens    int
	TimeoutSec   int
}

type TriggerConfig struct {
	Token         string
	WorkflowURL   string
	WorkflowToken string
}

type WorkerConfig struct {
	QueueName       string
	VisibilitySec   int
	PollQty         int
	EmptySleepSec   int
	IdleExitSec     int
	DefaultMaxTries int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/aivis")

	viper.SetEnvPrefix("AIVIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// SupabaseConfigured reports whether the primary store can be used at all.
func (c *Config) SupabaseConfigured() bool {
	return c.Supabase.URL != "" && c.Supabase.ServiceKey != ""
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("supabase.timeoutSec", 20)
	viper.SetDefault("supabase.pageSize", 1000)
	viper.SetDefault("supabase.maxPages", 40)

	viper.SetDefault("fallback.baseURL", "")
	viper.SetDefault("fallback.timeoutSec", 15)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 60)

	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("worker.queueName", "benchmark_jobs")
	viper.SetDefault("worker.visibilitySec", 120)
	viper.SetDefault("worker.pollQty", 1)
	viper.SetDefault("worker.emptySleepSec", 2)
	viper.SetDefault("worker.idleExitSec", 300)
	viper.SetDefault("worker.defaultMaxTries", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
