package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// NoteGenerator produces structured clinical notes with a Gemini model. The
// multimodal API takes document and image bytes inline, so scanned pages go
// straight to the model without a separate OCR pass.
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
	modelName := resolveModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if req == nil || strings.TrimSpace(req.Instructions) == "" {
		err := errors.New("generation request instructions are required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	client, err := newAPIClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, err
	}

	schema, err := noteDraftSchema()
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(req.Instructions, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: schema,
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.IsText() {
			parts = append(parts, genai.NewPartFromText(part.Text))
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(part.Data, part.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	log.Infof(
		"note_generation_request model=%q parts=%d attempt=%d schema=%s language=%s",
		modelName, len(parts), req.Attempt, req.SchemaVersion, req.TargetLanguage,
	)

	response, err := client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, classifyAPIError(err)
	}
	applyResponseMetadata(meta, response)

	text := strings.TrimSpace(response.Text())
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

// noteDraftSchema reflects the draft shape into a JSON schema the API
// enforces on the response.
func noteDraftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(model.NoteDraft{})

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	var schemaMap map[string]any
	err = json.Unmarshal(schemaJSON, &schemaMap)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return schemaMap, nil
}
