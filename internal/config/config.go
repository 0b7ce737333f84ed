package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./configs/config.yaml"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	ChatLLM     LLMConfig         `yaml:"chat_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Client      ClientConfig      `yaml:"client"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	DebugRoutes    bool   `yaml:"debug_routes"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// StorageConfig decides where the server keeps uploaded bytes.
// Mode is one of auto, local, minio or readonly.
type StorageConfig struct {
	Mode  string      `yaml:"mode"`
	Dir   string      `yaml:"dir"`
	Minio MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LLMConfig points at a model provider: openai, ollama or hash (offline embeddings only).
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Key        string `yaml:"key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

type RAGConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	TopK             int `yaml:"top_k"`
	HistoryLimit     int `yaml:"history_limit"`
	IndexConcurrency int `yaml:"index_concurrency"`
}

// VectorIndexConfig selects the index backend: memory, chromem or postgres.
type VectorIndexConfig struct {
	Backend  string         `yaml:"backend"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// ClientConfig configures the client side runner that owns browser-style storage.
type ClientConfig struct {
	ServerURL         string        `yaml:"server_url"`
	Store             string        `yaml:"store"`
	StoreDir          string        `yaml:"store_dir"`
	Namespace         string        `yaml:"namespace"`
	RedisAddr         string        `yaml:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisDB           int           `yaml:"redis_db"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LoadConfig reads the yaml file at path, loads .env, applies env overrides and defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no file or env input.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = v
		}
		if cfg.ChatLLM.Key == "" {
			cfg.ChatLLM.Key = v
		}
	}
	if v := os.Getenv("DOCCHAT_SERVER_URL"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v := os.Getenv("DOCCHAT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DOCCHAT_STORAGE_MODE"); v != "" {
		cfg.Storage.Mode = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DOCCHAT_VECTOR_BACKEND"); v != "" {
		cfg.VectorIndex.Backend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.VectorIndex.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Client.RedisAddr = v
	}
	if v := os.Getenv("DOCCHAT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RAG.TopK = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = "auto"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "uploads"
	}

	if cfg.EmbedLLM.Provider == "" {
		if cfg.EmbedLLM.Key != "" {
			cfg.EmbedLLM.Provider = "openai"
		} else {
			cfg.EmbedLLM.Provider = "hash"
		}
	}
	switch cfg.EmbedLLM.Provider {
	case "openai":
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		}
	case "ollama":
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "nomic-embed-text"
		}
	case "hash":
		if cfg.EmbedLLM.Dimensions == 0 {
			cfg.EmbedLLM.Dimensions = 256
		}
	}

	if cfg.ChatLLM.Provider == "" {
		cfg.ChatLLM.Provider = "openai"
	}
	if cfg.ChatLLM.Provider == "ollama" && cfg.ChatLLM.BaseURL == "" {
		cfg.ChatLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.ChatLLM.Model == "" {
		cfg.ChatLLM.Model = "gpt-4.1-mini"
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.HistoryLimit == 0 {
		cfg.RAG.HistoryLimit = 6
	}
	if cfg.RAG.IndexConcurrency == 0 {
		cfg.RAG.IndexConcurrency = 4
	}

	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "memory"
	}
	if cfg.VectorIndex.Chromem.Path == "" {
		cfg.VectorIndex.Chromem.Path = "./chromemdb"
	}
	if cfg.VectorIndex.Chromem.Collection == "" {
		cfg.VectorIndex.Chromem.Collection = "file_chunks"
	}

	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = "http://localhost:8000"
	}
	if cfg.Client.Store == "" {
		cfg.Client.Store = "dir"
	}
	if cfg.Client.StoreDir == "" {
		cfg.Client.StoreDir = ".docchat"
	}
	if cfg.Client.Namespace == "" {
		cfg.Client.Namespace = "uploaded_files"
	}
	if cfg.Client.RedisAddr == "" {
		cfg.Client.RedisAddr = "localhost:6379"
	}
	if cfg.Client.PollInterval == 0 {
		cfg.Client.PollInterval = 2 * time.Second
	}
	if cfg.Client.ReconcileInterval == 0 {
		cfg.Client.ReconcileInterval = 30 * time.Second
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = 2 * time.Minute
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Mode) {
	case "auto", "local", "minio", "readonly":
	default:
		return fmt.Errorf("storage.mode: unknown mode %q", c.Storage.Mode)
	}
	if c.Storage.Mode == "minio" && (c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "") {
		return errors.New("storage.minio: endpoint and bucket are required")
	}
	switch c.EmbedLLM.Provider {
	case "openai", "ollama", "hash":
	default:
		return fmt.Errorf("embed_llm.provider: unknown provider %q", c.EmbedLLM.Provider)
	}
	switch c.ChatLLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("chat_llm.provider: unknown provider %q", c.ChatLLM.Provider)
	}
	if c.RAG.ChunkSize <= 0 {
		return errors.New("rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return errors.New("rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.TopK <= 0 {
		return errors.New("rag.top_k must be positive")
	}
	switch c.VectorIndex.Backend {
	case "memory", "chromem":
	case "postgres":
		if c.VectorIndex.Postgres.DSN == "" {
			return errors.New("vector_index.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("vector_index.backend: unknown backend %q", c.VectorIndex.Backend)
	}
	switch c.Client.Store {
	case "memory", "dir", "redis":
	default:
		return fmt.Errorf("client.store: unknown store %q", c.Client.Store)
	}
	return nil
}
