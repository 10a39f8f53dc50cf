package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// Transcriber transcribes audio chunks with the Whisper API. Verbose output
// is requested so each chunk yields timestamped segments plus the language
// the model detected.
type Transcriber struct {
	client *client
	cfg    Config
}

func NewTranscriber(cfg Config) (*Transcriber, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &Transcriber{client: c, cfg: cfg}, nil
}

// verboseTranscription mirrors the verbose_json response shape.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
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

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(chunk.Data), chunkFilename(chunk.MIMEType), chunk.MIMEType),
		Model:          openai.AudioModel(modelName),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if opts.Language != "" && opts.Language != model.AudioLanguageAuto {
		params.Language = param.NewOpt(opts.Language)
	}
	if prompt := buildTranscriptionPrompt(opts); prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	log.Infof("transcription_request model=%q chunk=%d bytes=%d language=%q", modelName, chunk.Index, len(chunk.Data), opts.Language)

	response, err := t.client.apiClient.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, classifyAPIError(err)
	}
	if response == nil {
		err = errors.New("audio transcriptions API returned nil response")
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, utils.WrapIfNotNil(err)
	}

	var verbose verboseTranscription
	if err := json.Unmarshal([]byte(response.RawJSON()), &verbose); err != nil {
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, utils.WrapIfNotNil(err)
	}

	result := model.TranscriptionResult{
		DetectedLanguage: strings.ToLower(strings.TrimSpace(verbose.Language)),
	}
	for _, segment := range verbose.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segmentStart, segmentEnd := segment.Start, segment.End
		result.Segments = append(result.Segments, model.TranscriptSegment{
			Text:       text,
			ChunkIndex: chunk.Index,
			StartSec:   &segmentStart,
			EndSec:     &segmentEnd,
		})
	}
	if len(result.Segments) == 0 {
		if text := strings.TrimSpace(verbose.Text); text != "" {
			result.Segments = []model.TranscriptSegment{
				{Text: text, ChunkIndex: chunk.Index},
			}
		}
	}
	if len(result.Segments) == 0 {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return model.TranscriptionResult{}, meta, utils.WrapIfNotNil(err)
	}

	return result, meta, nil
}

func buildTranscriptionPrompt(opts model.AudioOptions) string {
	if custom := strings.TrimSpace(opts.Prompt); custom != "" {
		return custom
	}
	return buildCommonMissedWordsPrompt(opts.Keywords)
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) string {
	normalized := normalizeAudioKeywords(keywords)
	if len(normalized) == 0 {
		return ""
	}

	keywordsJSON, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	return "Common missed words: " + string(keywordsJSON)
}

func normalizeAudioKeywords(keywords []model.AudioKeyword) []model.AudioKeyword {
	if len(keywords) == 0 {
		return nil
	}

	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		commonMistypes := make([]string, 0, len(keyword.CommonMistypes))
		for _, candidate := range keyword.CommonMistypes {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			commonMistypes = append(commonMistypes, candidate)
		}

		if word == "" && definition == "" && len(commonMistypes) == 0 {
			continue
		}

		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: commonMistypes,
			Definition:     definition,
		})
	}

	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func resolveTranscriptionModelName(cfg Config, opts model.AudioOptions) string {
	if name := strings.TrimSpace(opts.Model); name != "" {
		return name
	}
	if name := strings.TrimSpace(cfg.Model); name != "" {
		return name
	}
	return defaultModelName
}

// chunkFilename gives the multipart upload a filename whose extension
// matches the audio container, which the API uses to pick a decoder.
func chunkFilename(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "chunk.wav"
	case "audio/mpeg", "audio/mp3":
		return "chunk.mp3"
	case "audio/mp4", "video/mp4":
		return "chunk.mp4"
	case "audio/webm", "video/webm":
		return "chunk.webm"
	case "audio/ogg":
		return "chunk.ogg"
	case "audio/flac", "audio/x-flac":
		return "chunk.flac"
	case "audio/aac":
		return "chunk.aac"
	default:
		return "chunk.bin"
	}
}
