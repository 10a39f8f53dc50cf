package bedrock

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

const (
	providerName     = "bedrock"
	defaultModelName = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	defaultRegion    = "us-east-1"
)

// Config selects the region and model. Credentials come from the standard
// AWS environment (keys, session token, or a shared profile).
type Config struct {
	Region  string
	ModelID string
	BaseURL string
}

func newClient(ctx context.Context, cfg Config) (*bedrockruntime.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if strings.TrimSpace(cfg.BaseURL) != "" {
			o.BaseEndpoint = aws.String(strings.TrimSpace(cfg.BaseURL))
		}
	})
	return client, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
	if region == "" {
		region = defaultRegion
	}

	accessKeyID := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	profile := strings.TrimSpace(os.Getenv("AWS_PROFILE"))

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	switch {
	case accessKeyID != "" || secretAccessKey != "":
		if accessKeyID == "" || secretAccessKey == "" {
			return aws.Config{}, utils.WrapIfNotNil(
				errors.New("both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required when using key-based auth"),
			)
		}

		sessionToken := strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN"))
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		))
	case profile != "":
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	default:
		return aws.Config{}, utils.WrapIfNotNil(
			errors.New("missing AWS credentials: set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or AWS_PROFILE"),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, utils.WrapIfNotNil(err)
	}
	return awsCfg, nil
}

func resolveModelID(cfg Config) string {
	if name := strings.TrimSpace(cfg.ModelID); name != "" {
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

func applyConverseMetadata(meta model.GenerationMetadata, output *bedrockruntime.ConverseOutput) {
	if meta == nil || output == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if output.Usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.FormatInt(int64(aws.ToInt32(output.Usage.InputTokens)), 10)
		meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(int64(aws.ToInt32(output.Usage.OutputTokens)), 10)
		meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(int64(aws.ToInt32(output.Usage.TotalTokens)), 10)
		meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(int64(aws.ToInt32(output.Usage.CacheReadInputTokens)), 10)
	}
	if strings.TrimSpace(string(output.StopReason)) != "" {
		meta[model.MetadataKeyResponseStatus] = string(output.StopReason)
	}
	if output.Metrics != nil && aws.ToInt64(output.Metrics.LatencyMs) > 0 {
		meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(aws.ToInt64(output.Metrics.LatencyMs), 10)
	}
}

// classifyAPIError marks throttling and service-side failures transient so
// callers retry them; everything else passes through unchanged.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var throttled *bedrocktypes.ThrottlingException
	var unavailable *bedrocktypes.ServiceUnavailableException
	var internal *bedrocktypes.InternalServerException
	var notReady *bedrocktypes.ModelNotReadyException
	if errors.As(err, &throttled) ||
		errors.As(err, &unavailable) ||
		errors.As(err, &internal) ||
		errors.As(err, &notReady) {
		return model.MarkTransient(utils.WrapIfNotNil(err))
	}
	return utils.WrapIfNotNil(err)
}
