package model

// GenerationPart is one piece of a multi-part generation request: either text
// or raw bytes with a media type for the vision-capable model.
type GenerationPart struct {
	Text     string
	Data     []byte
	MIMEType string
}

// IsText reports whether the part carries text rather than bytes.
func (p GenerationPart) IsText() bool {
	return len(p.Data) == 0
}

// GenerationRequest is an immutable value describing one generation attempt.
// The prompt builder constructs a fresh request per attempt; nothing mutates
// one after construction.
type GenerationRequest struct {
	// Instructions is byte-deterministic for identical builder inputs.
	Instructions   string
	Parts          []GenerationPart
	TargetLanguage Language
	SchemaVersion  string
	TemplateID     string
	// Attempt is the 1-based position within the shared retry ceiling.
	Attempt int
}

// GenerationMetadata carries structural diagnostics about external calls.
// It never holds clinical content.
type GenerationMetadata map[string]string

const (
	MetadataKeyProvider          = "provider"
	MetadataKeyModel             = "model"
	MetadataKeyLatencyMs         = "latency_ms"
	MetadataKeyInputTokens       = "input_tokens"
	MetadataKeyOutputTokens      = "output_tokens"
	MetadataKeyTotalTokens       = "total_tokens"
	MetadataKeyCachedInputTokens = "cached_input_tokens"
	MetadataKeyAPICalls          = "api_calls"
	MetadataKeyResponseID        = "response_id"
	MetadataKeyResponseStatus    = "response_status"
	MetadataKeyStage             = "stage"
	MetadataKeyAttempts          = "attempts"
	MetadataKeySession           = "session"
	MetadataKeyMediaKind         = "media_kind"
	MetadataKeyChunks            = "chunks"
	MetadataKeyGapChunks         = "gap_chunks"
	MetadataKeyDetectedLanguage  = "detected_language"
)

// Merge copies entries from other, overwriting existing keys.
func (m GenerationMetadata) Merge(other GenerationMetadata) {
	for key, value := range other {
		m[key] = value
	}
}
