package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
)

// Provider names accepted for the generation and transcription slots.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

type Config struct {
	Generation    GenerationConfig
	Transcription TranscriptionConfig
	Pipeline      PipelineConfig
	Gemini        GeminiConfig
	OpenAI        OpenAIConfig
	Bedrock       BedrockConfig
	Logger        LoggerConfig
}

// GenerationConfig selects which backend produces structured notes.
type GenerationConfig struct {
	Provider string
}

// TranscriptionConfig selects which backend transcribes audio chunks.
type TranscriptionConfig struct {
	Provider string
}

type PipelineConfig struct {
	MaxAttempts       int
	GenerationTimeout time.Duration
	BackoffBase       time.Duration
	ChunkBytes        int
	ChunkRetries      int
	ChunkConcurrency  int
	TemplateID        string
	AudioLanguage     string
	AudioKeywords     []string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

type LoggerConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("GENERATION_PROVIDER", ProviderGemini)
	v.SetDefault("TRANSCRIPTION_PROVIDER", ProviderOpenAI)
	v.SetDefault("PIPELINE_MAX_ATTEMPTS", 3)
	v.SetDefault("PIPELINE_GENERATION_TIMEOUT", "45s")
	v.SetDefault("PIPELINE_BACKOFF_BASE", "500ms")
	v.SetDefault("PIPELINE_CHUNK_BYTES", 8<<20)
	v.SetDefault("PIPELINE_CHUNK_RETRIES", 2)
	v.SetDefault("PIPELINE_CHUNK_CONCURRENCY", 3)
	v.SetDefault("PIPELINE_TEMPLATE_ID", "clinical-note-v1")
	v.SetDefault("PIPELINE_AUDIO_LANGUAGE", "auto")
	v.SetDefault("PIPELINE_AUDIO_KEYWORDS", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_TRANSCRIPTION_MODEL", "whisper-1")
	v.SetDefault("BEDROCK_REGION", "us-east-1")
	v.SetDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Generation: GenerationConfig{
			Provider: strings.ToLower(v.GetString("GENERATION_PROVIDER")),
		},
		Transcription: TranscriptionConfig{
			Provider: strings.ToLower(v.GetString("TRANSCRIPTION_PROVIDER")),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:       v.GetInt("PIPELINE_MAX_ATTEMPTS"),
			GenerationTimeout: durationOr(v, "PIPELINE_GENERATION_TIMEOUT", 45*time.Second),
			BackoffBase:       durationOr(v, "PIPELINE_BACKOFF_BASE", 500*time.Millisecond),
			ChunkBytes:        v.GetInt("PIPELINE_CHUNK_BYTES"),
			ChunkRetries:      v.GetInt("PIPELINE_CHUNK_RETRIES"),
			ChunkConcurrency:  v.GetInt("PIPELINE_CHUNK_CONCURRENCY"),
			TemplateID:        v.GetString("PIPELINE_TEMPLATE_ID"),
			AudioLanguage:     v.GetString("PIPELINE_AUDIO_LANGUAGE"),
			AudioKeywords:     splitKeywords(v.GetString("PIPELINE_AUDIO_KEYWORDS")),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("GEMINI_API_KEY"),
			Model:  v.GetString("GEMINI_MODEL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             v.GetString("OPENAI_API_KEY"),
			BaseURL:            v.GetString("OPENAI_BASE_URL"),
			TranscriptionModel: v.GetString("OPENAI_TRANSCRIPTION_MODEL"),
		},
		Bedrock: BedrockConfig{
			Region:  v.GetString("BEDROCK_REGION"),
			ModelID: v.GetString("BEDROCK_MODEL_ID"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logging.Configure(cfg.Logger.Level, cfg.Logger.Format)
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Generation.Provider {
	case ProviderGemini, ProviderBedrock:
	default:
		return fmt.Errorf("unsupported generation provider %q", c.Generation.Provider)
	}
	switch c.Transcription.Provider {
	case ProviderOpenAI, ProviderGemini, "":
	default:
		return fmt.Errorf("unsupported transcription provider %q", c.Transcription.Provider)
	}
	return nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}
