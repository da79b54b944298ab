package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	LLM            LLMConfig
	Embedding      EmbeddingConfig
	Evidence       EvidenceConfig
	Database       DatabaseConfig
	PDF            PDFConfig
	Classification ClassificationConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	LogLevel string
}

// LLMConfig holds structured-completion configuration
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	Temperature       float32
	CallTimeout       time.Duration
	RequestsPerSecond float64
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider    string
	OllamaURL   string
	OllamaModel string
	Dimensions  int // 0 uses the provider default
}

// EvidenceConfig selects and configures the evidence index
type EvidenceConfig struct {
	Backend      string
	SQLitePath   string
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
	Timeout      time.Duration
	EnsureSchema bool // create the postgres table or qdrant collection when missing
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// PDFConfig holds poppler tool locations and text thresholds
type PDFConfig struct {
	Pdftotext       string
	Pdftoppm        string
	Pdfinfo         string
	RenderDPI       int
	RenderMaxPages  int
	MinUsefulChars  int
	TextParseBudget int
}

// ClassificationConfig holds the classification pipeline knobs
type ClassificationConfig struct {
	TopN                 int
	ExamplesPerGroup     int
	RetrievalParallelism int
}

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderOllama = "ollama"

	EvidenceBackendSQLite   = "sqlite"
	EvidenceBackendPostgres = "postgres"
	EvidenceBackendQdrant   = "qdrant"
)

// VectorDimensions is the embedding length stores are created with.
func (e EmbeddingConfig) VectorDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	if e.Provider == EmbeddingProviderOllama {
		return 768
	}
	return 3072
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", ""),
			Model:             getEnv("OPENAI_MODEL", "gpt-4.1-2025-04-14"),
			EmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-large"),
			Temperature:       getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			CallTimeout:       getEnvAsDuration("LLM_CALL_TIMEOUT", 60*time.Second),
			RequestsPerSecond: getEnvAsFloat64("LLM_RPS", 0),
		},
		Embedding: EmbeddingConfig{
			Provider:    strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderOpenAI)),
			OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Dimensions:  getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
		},
		Evidence: EvidenceConfig{
			Backend:      strings.ToLower(getEnv("EVIDENCE_BACKEND", EvidenceBackendSQLite)),
			SQLitePath:   getEnv("EVIDENCE_SQLITE_PATH", "./evidence.db"),
			QdrantURL:    getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
			Collection:   getEnv("EVIDENCE_COLLECTION", "procurement_request_context"),
			Timeout:      getEnvAsDuration("EVIDENCE_TIMEOUT", 5*time.Second),
			EnsureSchema: getEnvAsBool("EVIDENCE_ENSURE_SCHEMA", false),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		PDF: PDFConfig{
			Pdftotext:       getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:        getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdfinfo:         getEnv("PDFINFO_BIN", "pdfinfo"),
			RenderDPI:       getEnvAsInt("RENDER_DPI", 150),
			RenderMaxPages:  getEnvAsInt("RENDER_MAX_PAGES", 0),
			MinUsefulChars:  getEnvAsInt("MIN_USEFUL_CHARS", 200),
			TextParseBudget: getEnvAsInt("TEXT_PARSE_BUDGET", 15000),
		},
		Classification: ClassificationConfig{
			TopN:                 getEnvAsInt("CLASSIFY_TOP_N", 3),
			ExamplesPerGroup:     getEnvAsInt("CLASSIFY_EXAMPLES_PER_GROUP", 2),
			RetrievalParallelism: getEnvAsInt("CLASSIFY_RETRIEVAL_PARALLELISM", 3),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI, EmbeddingProviderOllama:
	default:
		return NewAppError(CodeConfig, "EMBEDDING_PROVIDER must be openai or ollama", ErrInvalidInput)
	}
	switch c.Evidence.Backend {
	case EvidenceBackendSQLite:
		if c.Evidence.SQLitePath == "" {
			return NewAppError(CodeConfig, "EVIDENCE_SQLITE_PATH is required", ErrInvalidInput)
		}
	case EvidenceBackendPostgres:
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required for the postgres evidence backend", ErrInvalidInput)
		}
	case EvidenceBackendQdrant:
		if c.Evidence.QdrantURL == "" {
			return NewAppError(CodeConfig, "QDRANT_URL is required for the qdrant evidence backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "EVIDENCE_BACKEND must be sqlite, postgres or qdrant", ErrInvalidInput)
	}
	if c.Classification.TopN <= 0 || c.Classification.ExamplesPerGroup <= 0 {
		return NewAppError(CodeConfig, "classification top-n and examples per group must be positive", ErrInvalidInput)
	}
	return nil
}
