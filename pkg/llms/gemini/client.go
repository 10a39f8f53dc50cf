package gemini

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

const (
	providerName     = "gemini"
	defaultModelName = "gemini-2.5-flash"
)

// Config carries provider credentials and the model name. An empty APIKey
// falls back to the GEMINI_API_KEY environment variable.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func newAPIClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	token := strings.TrimSpace(cfg.APIKey)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if token != "" {
		clientCfg.APIKey = token
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{
			BaseURL: baseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client, nil
}

func resolveModelName(cfg Config) string {
	if name := strings.TrimSpace(cfg.Model); name != "" {
		return name
	}
	return defaultModelName
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

func applyResponseMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if usage := response.UsageMetadata; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(usage.PromptTokenCount))
		meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(usage.CandidatesTokenCount))
		meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(usage.TotalTokenCount))
		meta[model.MetadataKeyCachedInputTokens] = strconv.Itoa(int(usage.CachedContentTokenCount))
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}

// classifyAPIError marks rate limits and server-side failures transient so
// callers retry them; everything else passes through unchanged.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
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
