// Package config loads and holds the application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"miba-assist-go/pkg/log"
)

// Conf is the global configuration, populated by Init from the YAML file.
var Conf Config

// Config mirrors the structure of configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Credentials   CredentialsConfig   `mapstructure:"credentials"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Tika          TikaConfig          `mapstructure:"tika"`
	RAG           RAGConfig           `mapstructure:"rag"`
	Session       SessionConfig       `mapstructure:"session"`
	Analytics     AnalyticsConfig     `mapstructure:"analytics"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Synonyms      map[string][]string `mapstructure:"synonyms"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// CredentialsConfig names the JSON credential files loaded at startup.
// Values found in those files override the corresponding YAML fields.
type CredentialsConfig struct {
	LLMFile     string `mapstructure:"llm_file"`
	SearchFile  string `mapstructure:"search_file"`
	StorageFile string `mapstructure:"storage_file"`
}

// MinIOConfig holds object storage settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	BucketPrefix    string `mapstructure:"bucket_prefix"`
}

// ElasticsearchConfig holds search engine settings.
type ElasticsearchConfig struct {
	Addresses     string  `mapstructure:"addresses"`
	Username      string  `mapstructure:"username"`
	Password      string  `mapstructure:"password"`
	IndexName     string  `mapstructure:"index_name"`
	ForceRebuild  bool    `mapstructure:"force_rebuild"`
	VectorWeight  float64 `mapstructure:"vector_weight"`
	KeywordWeight float64 `mapstructure:"keyword_weight"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig holds completion model settings.
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig holds the default generation parameters. Sub-tasks
// (translation, metadata extraction, query rewriting) override these per call.
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TikaConfig holds the optional Tika server address. When empty, corpus
// objects are treated as UTF-8 plaintext.
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// RAGConfig holds the retrieval pipeline settings.
type RAGConfig struct {
	ChunkSize     int    `mapstructure:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap"`
	TopK          int    `mapstructure:"top_k"`
	DocsCacheFile string `mapstructure:"docs_cache_file"`
	ForceIngest   bool   `mapstructure:"force_ingest"`
	HelpText      string `mapstructure:"help_text"`
}

// SessionConfig selects the chat session store.
type SessionConfig struct {
	Store    string      `mapstructure:"store"` // "memory" or "redis"
	Redis    RedisConfig `mapstructure:"redis"`
	TTLHours int         `mapstructure:"ttl_hours"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalyticsConfig gates the durable interaction log and the Kafka event stream.
type AnalyticsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MySQLDSN     string `mapstructure:"mysql_dsn"`
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
}

// JWTConfig holds chat access token settings.
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// Init reads the YAML file at configPath into Conf. Configuration errors are
// fatal: the process must not come up half-configured.
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}
}

// LoadCredFile reads a flat JSON credential file into a string map. A missing
// or malformed file yields an empty map and a warning, matching the degraded
// startup behavior for optional credential sources.
func LoadCredFile(path string) map[string]string {
	creds := map[string]string{}
	if path == "" {
		return creds
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("credential file '%s' not found: %v", path, err)
		return creds
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		log.Warnf("could not decode JSON from credential file '%s': %v", path, err)
		return map[string]string{}
	}
	return creds
}

// ApplyCredentials merges values from the configured credential files over
// the YAML settings. Files are optional; present keys win.
func ApplyCredentials() {
	if llm := LoadCredFile(Conf.Credentials.LLMFile); len(llm) > 0 {
		if v, ok := llm["api_key"]; ok {
			Conf.LLM.APIKey = v
			Conf.Embedding.APIKey = v
		}
		if v, ok := llm["embedding_api_key"]; ok {
			Conf.Embedding.APIKey = v
		}
	}
	if search := LoadCredFile(Conf.Credentials.SearchFile); len(search) > 0 {
		if v, ok := search["db_hosts"]; ok {
			Conf.Elasticsearch.Addresses = v
		}
		if v, ok := search["db_user"]; ok {
			Conf.Elasticsearch.Username = v
		}
		if v, ok := search["db_password"]; ok {
			Conf.Elasticsearch.Password = v
		}
	}
	if s3 := LoadCredFile(Conf.Credentials.StorageFile); len(s3) > 0 {
		if v, ok := s3["endpoint"]; ok {
			Conf.MinIO.Endpoint = v
		}
		if v, ok := s3["access_key_id"]; ok {
			Conf.MinIO.AccessKeyID = v
		}
		if v, ok := s3["secret_access_key"]; ok {
			Conf.MinIO.SecretAccessKey = v
		}
		if v, ok := s3["bucket"]; ok {
			Conf.MinIO.BucketName = v
		}
		if v, ok := s3["bucket_prefix"]; ok {
			Conf.MinIO.BucketPrefix = v
		}
	}
}
