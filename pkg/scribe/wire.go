package scribe

import (
	"fmt"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/config"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/llms/bedrock"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/llms/openai"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// NewFromConfig assembles a pipeline from loaded configuration, picking the
// generation and transcription backends by name.
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrInvalidRequest)
	}

	generator, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return nil, err
	}

	keywords := make([]model.AudioKeyword, 0, len(cfg.Pipeline.AudioKeywords))
	for _, word := range cfg.Pipeline.AudioKeywords {
		keywords = append(keywords, model.AudioKeyword{Word: word})
	}

	return New(
		transcriber,
		generator,
		WithMaxAttempts(cfg.Pipeline.MaxAttempts),
		WithGenerationTimeout(cfg.Pipeline.GenerationTimeout),
		WithBackoffBase(cfg.Pipeline.BackoffBase),
		WithTemplateID(cfg.Pipeline.TemplateID),
		WithChunking(cfg.Pipeline.ChunkBytes, cfg.Pipeline.ChunkRetries, cfg.Pipeline.ChunkConcurrency),
		WithAudioOptions(model.AudioOptions{
			Language: cfg.Pipeline.AudioLanguage,
			Keywords: keywords,
		}),
	)
}

func newGenerator(cfg *config.Config) (model.NoteGenerator, error) {
	switch cfg.Generation.Provider {
	case config.ProviderGemini:
		return gemini.NewNoteGenerator(gemini.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	case config.ProviderBedrock:
		return bedrock.NewNoteGenerator(bedrock.Config{
			Region:  cfg.Bedrock.Region,
			ModelID: cfg.Bedrock.ModelID,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported generation provider %q", ErrInvalidRequest, cfg.Generation.Provider)
	}
}

func newTranscriber(cfg *config.Config) (model.Transcriber, error) {
	switch cfg.Transcription.Provider {
	case config.ProviderOpenAI:
		return openai.NewTranscriber(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.TranscriptionModel,
		})
	case config.ProviderGemini:
		return gemini.NewTranscriber(gemini.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	case "":
		// Audio support is optional; document-only deployments skip it.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported transcription provider %q", ErrInvalidRequest, cfg.Transcription.Provider)
	}
}
