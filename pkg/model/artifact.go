package model

// MediaKind is the sniffed content kind of an uploaded artifact.
type MediaKind string

const (
	MediaKindAudio       MediaKind = "audio"
	MediaKindImage       MediaKind = "image"
	MediaKindPDF         MediaKind = "pdf"
	MediaKindUnsupported MediaKind = "unsupported"
)

// LanguageUnspecified marks content whose source language is unknown. It is
// resolved by explicit caller selection, never guessed downstream.
const LanguageUnspecified = "unspecified"

// Artifact is one uploaded clinical input. It is owned by the pipeline
// invocation that received it and never outlives that invocation.
type Artifact struct {
	Data []byte
	Kind MediaKind
	// MIMEType is the sniffed media type, not the declared one.
	MIMEType string
	// DeclaredHint is the caller's advisory kind hint. Classification is done
	// over content; the hint is only recorded for diagnostics.
	DeclaredHint string
}

// TranscriptSegment is one ordered piece of transcribed speech.
type TranscriptSegment struct {
	Text       string
	ChunkIndex int
	Confidence *float64
	StartSec   *float64
	EndSec     *float64
	// Gap marks a placeholder segment for a chunk whose transcription failed
	// after its retry budget.
	Gap bool
}

// PageText is the extracted text of one document page.
type PageText struct {
	Page int
	Text string
}

// ImagePayload carries raw visual content for the vision-capable generation
// step. For an image-only document page, Data holds the source document bytes
// and Page names the page the model should read.
type ImagePayload struct {
	Data     []byte
	MIMEType string
	Page     int
}

// ExtractedContent is the modality-normalized intermediate fed to generation.
// Exactly one extractor produces it per artifact; a mixed document may fill
// both Pages and Images, in page order.
type ExtractedContent struct {
	Segments []TranscriptSegment
	Pages    []PageText
	Images   []ImagePayload
	// LanguageHint is the source language if known, else LanguageUnspecified.
	LanguageHint string
	// GapCount is the number of transcript chunks replaced by gap markers.
	GapCount int
}

// Empty reports whether extraction produced nothing generation could use.
func (c *ExtractedContent) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Segments) == 0 && len(c.Pages) == 0 && len(c.Images) == 0
}
