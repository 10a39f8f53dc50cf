package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/invopop/jsonschema"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// NoteGenerator produces structured clinical notes through the Bedrock
// Converse API. Converse has no response-schema enforcement, so the draft
// schema is appended to the instructions and the caller parses the text.
type NoteGenerator struct {
	cfg Config
}

func NewNoteGenerator(cfg Config) (*NoteGenerator, error) {
	return &NoteGenerator{cfg: cfg}, nil
}

func (g *NoteGenerator) GenerateNote(
	ctx context.Context,
	req *model.GenerationRequest,
) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelID := resolveModelID(g.cfg)
	meta := initMetadata(modelID)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if req == nil || strings.TrimSpace(req.Instructions) == "" {
		err := errors.New("generation request instructions are required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	schemaJSON, err := noteDraftSchemaJSON()
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	system := []bedrocktypes.SystemContentBlock{
		&bedrocktypes.SystemContentBlockMemberText{
			Value: req.Instructions +
				"\n\nReturn ONLY valid JSON that matches this schema:\n" + schemaJSON,
		},
	}

	blocks, err := buildContentBlocks(req.Parts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	messages := []bedrocktypes.Message{
		{
			Role:    bedrocktypes.ConversationRoleUser,
			Content: blocks,
		},
	}

	client, err := newClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, err
	}

	log.Infof(
		"note_generation_request model=%q blocks=%d attempt=%d schema=%s language=%s",
		modelID, len(blocks), req.Attempt, req.SchemaVersion, req.TargetLanguage,
	)

	output, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		System:   system,
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, classifyAPIError(err)
	}
	applyConverseMetadata(meta, output)

	message, err := extractOutputMessage(output.Output)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	text := strings.TrimSpace(extractTextFromMessage(message))
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildContentBlocks(parts []model.GenerationPart) ([]bedrocktypes.ContentBlock, error) {
	blocks := make([]bedrocktypes.ContentBlock, 0, len(parts))
	documents := 0

	for _, part := range parts {
		if part.IsText() {
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			blocks = append(blocks, &bedrocktypes.ContentBlockMemberText{Value: part.Text})
			continue
		}

		mimeType := strings.ToLower(strings.TrimSpace(part.MIMEType))
		switch {
		case mimeType == "application/pdf":
			documents++
			blocks = append(blocks, &bedrocktypes.ContentBlockMemberDocument{
				Value: bedrocktypes.DocumentBlock{
					Format: bedrocktypes.DocumentFormatPdf,
					Name:   aws.String(fmt.Sprintf("document-%d", documents)),
					Source: &bedrocktypes.DocumentSourceMemberBytes{Value: part.Data},
				},
			})
		case strings.HasPrefix(mimeType, "image/"):
			format, err := imageFormatFor(mimeType)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, &bedrocktypes.ContentBlockMemberImage{
				Value: bedrocktypes.ImageBlock{
					Format: format,
					Source: &bedrocktypes.ImageSourceMemberBytes{Value: part.Data},
				},
			})
		default:
			return nil, fmt.Errorf("unsupported content part media type %q", part.MIMEType)
		}
	}

	if len(blocks) == 0 {
		return nil, errors.New("generation request has no content parts")
	}
	return blocks, nil
}

func imageFormatFor(mimeType string) (bedrocktypes.ImageFormat, error) {
	switch mimeType {
	case "image/png":
		return bedrocktypes.ImageFormatPng, nil
	case "image/jpeg", "image/jpg":
		return bedrocktypes.ImageFormatJpeg, nil
	case "image/gif":
		return bedrocktypes.ImageFormatGif, nil
	case "image/webp":
		return bedrocktypes.ImageFormatWebp, nil
	default:
		return "", fmt.Errorf("unsupported image media type %q", mimeType)
	}
}

func extractOutputMessage(output bedrocktypes.ConverseOutput) (bedrocktypes.Message, error) {
	if output == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is nil"))
	}

	messageOutput, ok := output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok || messageOutput == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is not a message"))
	}
	return messageOutput.Value, nil
}

func extractTextFromMessage(message bedrocktypes.Message) string {
	parts := make([]string, 0)
	for _, block := range message.Content {
		textBlock, ok := block.(*bedrocktypes.ContentBlockMemberText)
		if !ok || textBlock == nil {
			continue
		}
		value := strings.TrimSpace(textBlock.Value)
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\n")
}

func noteDraftSchemaJSON() (string, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(model.NoteDraft{})
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return string(schemaJSON), nil
}
