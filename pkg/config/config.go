package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Milvus     MilvusConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
	LLM        LLMConfig
	Cache      CacheConfig
	Decision   DecisionConfig
	Relaxation RelaxationConfig
	Sessions   SessionConfig
	WebSearch  WebSearchConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type CacheConfig struct {
	Enabled    bool
	Backend    string
	TTLSeconds int
}

// DecisionConfig tunes the adaptive confidence threshold controller.
type DecisionConfig struct {
	BaseThreshold  float64
	MinThreshold   float64
	MaxThreshold   float64
	MaxSessionSkew float64
}

// RelaxationConfig tunes the retrieval breadth stage machine.
type RelaxationConfig struct {
	InitialBoostTurns   int
	TransitionThreshold float64
}

type SessionConfig struct {
	MaxSessions int
	MaxTurns    int
}

type WebSearchConfig struct {
	Enabled    bool
	MaxResults int
	TimeoutSec int
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
	viper.AddConfigPath("/etc/rag-agent")

	viper.SetEnvPrefix("RAG_AGENT")
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

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 4194304)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "rag_documents")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/ragagent.db")

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-large")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttlSeconds", 900)

	viper.SetDefault("decision.baseThreshold", 0.7)
	viper.SetDefault("decision.minThreshold", 0.3)
	viper.SetDefault("decision.maxThreshold", 0.95)
	viper.SetDefault("decision.maxSessionSkew", 0.2)

	viper.SetDefault("relaxation.initialBoostTurns", 3)
	viper.SetDefault("relaxation.transitionThreshold", 0.6)

	viper.SetDefault("sessions.maxSessions", 10000)
	viper.SetDefault("sessions.maxTurns", 20)

	viper.SetDefault("webSearch.enabled", false)
	viper.SetDefault("webSearch.maxResults", 5)
	viper.SetDefault("webSearch.timeoutSec", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
