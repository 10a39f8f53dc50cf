package openai

import (
	"errors"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

const (
	providerName     = "openai"
	defaultModelName = "whisper-1"
)

// Config carries provider credentials. An empty APIKey defers to the
// OPENAI_API_KEY environment variable, which the SDK reads itself.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type client struct {
	apiClient openai.Client
}

func newClient(cfg Config) (*client, error) {
	requestOpts := make([]option.RequestOption, 0, 2)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if strings.TrimSpace(cfg.APIKey) != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.APIKey))
	}

	apiClient := openai.NewClient(requestOpts...)
	return &client{apiClient: apiClient}, nil
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

// classifyAPIError marks rate limits and server-side failures transient so
// callers retry them; everything else passes through unchanged.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return model.MarkTransient(utils.WrapIfNotNil(err))
		}
		return utils.WrapIfNotNil(err)
	}

	if utils.ContainsErrorSubstring(err, "connection reset") ||
		utils.ContainsErrorSubstring(err, "timeout") {
		return model.MarkTransient(utils.WrapIfNotNil(err))
	}
	return utils.WrapIfNotNil(err)
}
