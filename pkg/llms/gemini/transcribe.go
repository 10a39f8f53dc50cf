package gemini

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// Transcriber transcribes audio chunks with a Gemini multimodal model. It
// returns the transcript as a single segment per chunk; Gemini does not
// report the detected language, so the caller's language hint stands.
type Transcriber struct {
	cfg Config
}

func NewTranscriber(cfg Config) (*Transcriber, error) {
	return &Transcriber{cfg: cfg}, nil
}

func (t *Transcriber) TranscribeChunk(
	ctx context.Context,
	chunk model.AudioChunk,
	opts model.AudioOptions,
) (model.TranscriptionResult, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveTranscriptionModelName(t.cfg, opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if len(chunk.Data) == 0 {
		err := errors.New("audio chunk is empty")
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, utils.WrapIfNotNil(err)
	}

	client, err := newAPIClient(ctx, t.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, err
	}

	prompt := buildTranscriptionPrompt(opts)
	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(chunk.Data, chunk.MIMEType),
			},
			genai.RoleUser,
		),
	}

	log.Infof("transcription_request model=%q chunk=%d bytes=%d", modelName, chunk.Index, len(chunk.Data))

	response, err := client.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, classifyAPIError(err)
	}
	applyResponseMetadata(meta, response)

	transcript := strings.TrimSpace(response.Text())
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, utils.WrapIfNotNil(err)
	}

	return model.TranscriptionResult{
		Segments: []model.TranscriptSegment{
			{Text: transcript, ChunkIndex: chunk.Index},
		},
	}, meta, nil
}

func resolveTranscriptionModelName(cfg Config, opts model.AudioOptions) string {
	if name := strings.TrimSpace(opts.Model); name != "" {
		return name
	}
	return resolveModelName(cfg)
}

func buildTranscriptionPrompt(opts model.AudioOptions) string {
	if custom := strings.TrimSpace(opts.Prompt); custom != "" {
		return custom
	}

	base := "Transcribe this audio accurately. Return only the transcript text."
	if opts.Language != "" && opts.Language != model.AudioLanguageAuto {
		base += " The audio is spoken in " + opts.Language + "."
	}
	words := buildWordsToWatchPrompt(opts.Keywords)
	if words == "" {
		return base
	}
	return base + " Prioritize these terms if present: " + words + "."
}

func buildWordsToWatchPrompt(keywords []model.AudioKeyword) string {
	if len(keywords) == 0 {
		return ""
	}

	words := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		normalized := strings.TrimSpace(keyword.Word)
		if normalized == "" {
			continue
		}
		words = append(words, normalized)
	}
	if len(words) == 0 {
		return ""
	}

	sort.Strings(words)
	return strings.Join(words, ", ")
}
