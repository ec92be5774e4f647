package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIAddr           string
	TemporalAddress   string
	TemporalTaskQueue string
	PostgresURL       string

	DataRoot  string
	IndexDir  string
	LogsDir   string
	OCRSvcURL string

	ChunkSizeTokens    int
	ChunkOverlapTokens int

	EmbedDim       int
	EmbedVersion   string
	LLMProviders   string
	EmbedProviders string

	ResearchTopK  int
	SummarizeTopK int

	ResearchTemperature  float64
	JudgmentTemperature  float64
	SummarizeTemperature float64
	MaxOutputTokens      int

	MaxCitationRetries   int
	IngestMaxChildren    int
	ProviderCooldownSecs int
}

func Load() Config {
	return Config{
		APIAddr:           getenv("LEXRAG_API_ADDR", ":8080"),
		TemporalAddress:   getenv("LEXRAG_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getenv("LEXRAG_TEMPORAL_TASK_QUEUE", "lexrag"),
		PostgresURL:       getenv("LEXRAG_POSTGRES_URL", ""),

		DataRoot:  getenv("LEXRAG_DATA_ROOT", "./data"),
		IndexDir:  getenv("LEXRAG_INDEX_DIR", "./index"),
		LogsDir:   getenv("LEXRAG_LOGS_DIR", "./logs"),
		OCRSvcURL: getenv("LEXRAG_OCR_URL", ""),

		ChunkSizeTokens:    getenvInt("LEXRAG_CHUNK_SIZE", 800),
		ChunkOverlapTokens: getenvInt("LEXRAG_CHUNK_OVERLAP", 160),

		EmbedDim:       getenvInt("LEXRAG_EMBED_DIM", 384),
		EmbedVersion:   getenv("LEXRAG_EMBED_VERSION", "v1"),
		LLMProviders:   getenv("LEXRAG_LLM_PROVIDERS", "mock"),
		EmbedProviders: getenv("LEXRAG_EMBED_PROVIDERS", "mock"),

		ResearchTopK:  getenvInt("LEXRAG_RESEARCH_TOP_K", 6),
		SummarizeTopK: getenvInt("LEXRAG_SUMMARIZE_TOP_K", 3),

		ResearchTemperature:  getenvFloat("LEXRAG_RESEARCH_TEMPERATURE", 0.0),
		JudgmentTemperature:  getenvFloat("LEXRAG_JUDGMENT_TEMPERATURE", 0.1),
		SummarizeTemperature: getenvFloat("LEXRAG_SUMMARIZE_TEMPERATURE", 0.0),
		MaxOutputTokens:      getenvInt("LEXRAG_MAX_OUTPUT_TOKENS", 2048),

		MaxCitationRetries:   getenvInt("LEXRAG_MAX_CITATION_RETRIES", 2),
		IngestMaxChildren:    getenvInt("LEXRAG_INGEST_MAX_CHILDREN", 3),
		ProviderCooldownSecs: getenvInt("LEXRAG_PROVIDER_COOLDOWN_SECS", 900),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(k string, fallback float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
