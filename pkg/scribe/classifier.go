package scribe

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// minClassifiableBytes rejects payloads too short to carry any supported
// container signature.
const minClassifiableBytes = 12

// classifyArtifact labels an upload from its byte signature alone. The
// declared hint is never consulted; a mislabeled upload classifies the same
// as a correctly labeled one.
func classifyArtifact(data []byte) (model.MediaKind, string, error) {
	if len(data) < minClassifiableBytes {
		return model.MediaKindUnsupported, "", newStageError(
			StageClassify,
			ErrUnsupportedMedia,
			"payload is empty or truncated",
			nil,
		)
	}

	detected := mimetype.Detect(data)
	mime := detected.String()

	switch {
	case detected.Is("application/pdf"):
		return model.MediaKindPDF, mime, nil
	case strings.HasPrefix(mime, "image/"):
		return model.MediaKindImage, mime, nil
	case strings.HasPrefix(mime, "audio/"):
		return model.MediaKindAudio, mime, nil
	case detected.Is("video/mp4"), detected.Is("video/webm"):
		// Voice memos are frequently wrapped in video containers with no
		// video track. The transcription provider decides decodability.
		return model.MediaKindAudio, mime, nil
	}

	return model.MediaKindUnsupported, mime, newStageError(
		StageClassify,
		ErrUnsupportedMedia,
		"unrecognized media type "+mime,
		nil,
	)
}
