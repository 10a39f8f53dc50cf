package model

import "context"

// These are the narrow interfaces the pipeline consumes. Providers under
// pkg/llms implement them; tests substitute deterministic fakes.

// AudioChunk is one transcribable slice of an audio artifact. Index is the
// chunk's position in the original audio; transcript assembly orders by it.
type AudioChunk struct {
	Index    int
	Data     []byte
	MIMEType string
}

// AudioLanguageAuto asks the transcription provider to detect the spoken
// language itself. The detected language is trusted and propagated forward.
const AudioLanguageAuto = "auto"

// AudioKeyword provides a domain term the transcription model may otherwise
// miss, with common mis-transcriptions and a short definition.
type AudioKeyword struct {
	Word           string   `json:"word,omitempty"`
	CommonMistypes []string `json:"common_mistypes,omitempty"`
	Definition     string   `json:"definition,omitempty"`
}

// AudioOptions configures a transcription provider.
type AudioOptions struct {
	// Language is an ISO 639-1 hint, or AudioLanguageAuto.
	Language  string
	Model     string
	URL       string
	AuthToken string
	// Prompt overrides the provider's default transcription prompt. When set,
	// keyword hints are not appended.
	Prompt string
	// Keywords biases the model toward clinical vocabulary.
	Keywords []AudioKeyword
}

// TranscriptionResult is one chunk's ordered segments plus the language the
// provider detected, when it reports one.
type TranscriptionResult struct {
	Segments         []TranscriptSegment
	DetectedLanguage string
}

// Transcriber converts one audio chunk into ordered text segments.
type Transcriber interface {
	TranscribeChunk(ctx context.Context, chunk AudioChunk, opts AudioOptions) (TranscriptionResult, GenerationMetadata, error)
}

// NoteGenerator invokes a generative model with a multi-part request and
// returns the raw model output: structured JSON when the provider can
// constrain it, otherwise text the orchestrator must parse. Keeping the
// interface this narrow keeps the orchestrator and validator pure with
// respect to the non-deterministic model.
type NoteGenerator interface {
	GenerateNote(ctx context.Context, req *GenerationRequest) (string, GenerationMetadata, error)
}
