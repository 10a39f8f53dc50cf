package scribe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// transcriptGapMarker replaces a chunk whose transcription failed after its
// retry budget. Generation is told about gaps so it does not guess at the
// missing speech.
const transcriptGapMarker = "[inaudible segment: transcription unavailable]"

type chunkTranscriber struct {
	provider    model.Transcriber
	chunkBytes  int
	retries     int
	concurrency int
	retryDelay  time.Duration
}

type chunkOutcome struct {
	segments []model.TranscriptSegment
	language string
	failed   bool
}

// transcribe converts an audio artifact into ordered transcript segments.
// Long WAV audio is split into chunks transcribed concurrently; results are
// reassembled by chunk position, never by completion order. A chunk that
// fails its retries becomes a gap marker; it does not abort chunks that
// already succeeded.
func (t *chunkTranscriber) transcribe(
	ctx context.Context,
	sess *session,
	artifact *model.Artifact,
	opts model.AudioOptions,
) (*model.ExtractedContent, error) {
	log := logging.NewLogger(ctx)

	chunks := splitAudio(artifact.Data, artifact.MIMEType, t.chunkBytes)
	for _, chunk := range chunks {
		sess.hold(chunk.Data)
	}
	log.Infof("stage=%s chunks=%d chunk_retries=%d language=%q", StageTranscribe, len(chunks), t.retries, opts.Language)

	outcomes := make([]chunkOutcome, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(t.concurrency)

	for i, chunk := range chunks {
		group.Go(func() error {
			result, err := t.transcribeChunkWithRetry(groupCtx, chunk, opts)
			if err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				log.Warnf("stage=%s chunk=%d failed after %d attempts: %v", StageTranscribe, chunk.Index, t.retries+1, err)
				outcomes[i] = chunkOutcome{failed: true}
				return nil
			}
			outcomes[i] = chunkOutcome{
				segments: result.Segments,
				language: result.DetectedLanguage,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	content := &model.ExtractedContent{LanguageHint: model.LanguageUnspecified}
	succeeded := 0
	for i, outcome := range outcomes {
		if outcome.failed {
			content.Segments = append(content.Segments, model.TranscriptSegment{
				Text:       transcriptGapMarker,
				ChunkIndex: chunks[i].Index,
				Gap:        true,
			})
			content.GapCount++
			continue
		}

		succeeded++
		for _, segment := range outcome.segments {
			segment.ChunkIndex = chunks[i].Index
			content.Segments = append(content.Segments, segment)
		}
		if content.LanguageHint == model.LanguageUnspecified && strings.TrimSpace(outcome.language) != "" {
			content.LanguageHint = strings.ToLower(strings.TrimSpace(outcome.language))
		}
	}

	if opts.Language != model.AudioLanguageAuto && opts.Language != "" {
		content.LanguageHint = opts.Language
	}

	if succeeded == 0 {
		return nil, newStageError(
			StageTranscribe,
			ErrTranscription,
			fmt.Sprintf("all %d chunks failed transcription", len(chunks)),
			nil,
		)
	}
	if transcriptText(content.Segments) == "" {
		return nil, newStageError(StageTranscribe, ErrTranscription, "transcription produced no text", nil)
	}

	log.Infof(
		"stage=%s done chunks=%d gaps=%d detected_language=%q",
		StageTranscribe, len(chunks), content.GapCount, content.LanguageHint,
	)
	return content, nil
}

func (t *chunkTranscriber) transcribeChunkWithRetry(
	ctx context.Context,
	chunk model.AudioChunk,
	opts model.AudioOptions,
) (model.TranscriptionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, t.retryDelay*time.Duration(attempt)); err != nil {
				return model.TranscriptionResult{}, err
			}
		}

		result, _, err := t.provider.TranscribeChunk(ctx, chunk, opts)
		if err == nil {
			if len(result.Segments) == 0 || strings.TrimSpace(transcriptText(result.Segments)) == "" {
				lastErr = errors.New("chunk transcription returned no text")
				continue
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return model.TranscriptionResult{}, ctx.Err()
		}
	}
	return model.TranscriptionResult{}, lastErr
}

// transcriptText concatenates segments in order, including gap markers.
func transcriptText(segments []model.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitAudio cuts audio into independently decodable chunks. Only PCM WAV is
// split, on sample-frame boundaries with a replicated header; compressed
// containers go to the provider whole because a byte-level cut lands inside a
// codec frame.
func splitAudio(data []byte, mime string, chunkBytes int) []model.AudioChunk {
	if chunkBytes <= 0 || len(data) <= chunkBytes || !isWAV(data) {
		return []model.AudioChunk{{Index: 0, Data: data, MIMEType: mime}}
	}

	header, samples, blockAlign, ok := parseWAV(data)
	if !ok {
		return []model.AudioChunk{{Index: 0, Data: data, MIMEType: mime}}
	}

	stride := chunkBytes - (chunkBytes % blockAlign)
	if stride <= 0 {
		stride = blockAlign
	}

	chunks := make([]model.AudioChunk, 0, len(samples)/stride+1)
	for offset := 0; offset < len(samples); offset += stride {
		end := offset + stride
		if end > len(samples) {
			end = len(samples)
		}
		chunks = append(chunks, model.AudioChunk{
			Index:    len(chunks),
			Data:     buildWAVChunk(header, samples[offset:end]),
			MIMEType: mime,
		})
	}
	return chunks
}

func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// parseWAV returns the fmt chunk bytes (id and size included), the raw sample
// data, and the sample-frame size. A malformed container reports !ok and the
// caller falls back to a single chunk.
func parseWAV(data []byte) (fmtChunk []byte, samples []byte, blockAlign int, ok bool) {
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			return nil, nil, 0, false
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, nil, 0, false
			}
			fmtChunk = data[offset : body+size]
			blockAlign = int(binary.LittleEndian.Uint16(data[body+12 : body+14]))
		case "data":
			samples = data[body : body+size]
		}

		offset = body + size
		if size%2 == 1 {
			offset++ // RIFF chunks are word aligned
		}
	}

	ok = fmtChunk != nil && samples != nil && blockAlign > 0
	return fmtChunk, samples, blockAlign, ok
}

func buildWAVChunk(fmtChunk []byte, samples []byte) []byte {
	riffSize := 4 + len(fmtChunk) + 8 + len(samples)
	out := make([]byte, 0, 8+riffSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(riffSize))
	out = append(out, "WAVE"...)
	out = append(out, fmtChunk...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(samples)))
	out = append(out, samples...)
	return out
}

// chunkCount recovers how many chunks fed a transcript.
func chunkCount(segments []model.TranscriptSegment) int {
	highest := -1
	for _, segment := range segments {
		if segment.ChunkIndex > highest {
			highest = segment.ChunkIndex
		}
	}
	return highest + 1
}
