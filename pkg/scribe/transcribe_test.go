package scribe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// buildTestWAV assembles a PCM WAV container with the given sample byte
// count and sample-frame size.
func buildTestWAV(sampleBytes int, blockAlign int) []byte {
	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 1)  // PCM
	binary.LittleEndian.PutUint16(fmtBody[2:4], 1)  // mono
	binary.LittleEndian.PutUint32(fmtBody[4:8], 16000)
	binary.LittleEndian.PutUint32(fmtBody[8:12], uint32(16000*blockAlign))
	binary.LittleEndian.PutUint16(fmtBody[12:14], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtBody[14:16], uint16(8*blockAlign))

	samples := make([]byte, sampleBytes)
	for i := range samples {
		samples[i] = byte(i % 251)
	}

	riffSize := 4 + 8 + len(fmtBody) + 8 + len(samples)
	out := make([]byte, 0, 8+riffSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(riffSize))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fmtBody)))
	out = append(out, fmtBody...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(samples)))
	out = append(out, samples...)
	return out
}

// fakeTranscriber scripts per-chunk behavior: chunks listed in failChunks
// always fail, failFirstAttempts[i] fail that many times before succeeding.
type fakeTranscriber struct {
	mu                sync.Mutex
	calls             map[int]int
	failChunks        map[int]bool
	failFirstAttempts map[int]int
	language          string
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		calls:             make(map[int]int),
		failChunks:        make(map[int]bool),
		failFirstAttempts: make(map[int]int),
	}
}

func (f *fakeTranscriber) TranscribeChunk(
	_ context.Context,
	chunk model.AudioChunk,
	_ model.AudioOptions,
) (model.TranscriptionResult, model.GenerationMetadata, error) {
	f.mu.Lock()
	f.calls[chunk.Index]++
	attempt := f.calls[chunk.Index]
	alwaysFail := f.failChunks[chunk.Index]
	failFirst := f.failFirstAttempts[chunk.Index]
	f.mu.Unlock()

	if alwaysFail || attempt <= failFirst {
		return model.TranscriptionResult{}, nil, errors.New("upstream rejected chunk")
	}

	return model.TranscriptionResult{
		Segments: []model.TranscriptSegment{
			{Text: fmt.Sprintf("chunk-%d-text", chunk.Index)},
		},
		DetectedLanguage: f.language,
	}, model.GenerationMetadata{}, nil
}

func (f *fakeTranscriber) callCount(chunkIndex int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[chunkIndex]
}

type TranscribeSuite struct {
	suite.Suite
}

func TestTranscribeSuite(t *testing.T) {
	suite.Run(t, new(TranscribeSuite))
}

func (s *TranscribeSuite) transcriber(provider model.Transcriber, chunkBytes int) *chunkTranscriber {
	return &chunkTranscriber{
		provider:    provider,
		chunkBytes:  chunkBytes,
		retries:     2,
		concurrency: 3,
	}
}

func (s *TranscribeSuite) audioArtifact(data []byte) *model.Artifact {
	return &model.Artifact{Data: data, Kind: model.MediaKindAudio, MIMEType: "audio/wav"}
}

func (s *TranscribeSuite) TestSplitAudioKeepsSmallPayloadWhole() {
	data := buildTestWAV(100, 2)
	chunks := splitAudio(data, "audio/wav", 1<<20)

	s.Require().Len(chunks, 1)
	s.Equal(data, chunks[0].Data)
	s.Equal(0, chunks[0].Index)
}

func (s *TranscribeSuite) TestSplitAudioAlignsOnSampleFrames() {
	blockAlign := 4
	data := buildTestWAV(1000, blockAlign)
	chunks := splitAudio(data, "audio/wav", 301)

	s.Require().Greater(len(chunks), 1)
	for i, chunk := range chunks {
		s.Equal(i, chunk.Index)
		s.True(isWAV(chunk.Data))

		_, samples, parsedAlign, ok := parseWAV(chunk.Data)
		s.Require().True(ok)
		s.Equal(blockAlign, parsedAlign)
		if i < len(chunks)-1 {
			s.Zero(len(samples) % blockAlign)
		}
	}
}

func (s *TranscribeSuite) TestSplitAudioChunksReassembleOriginalSamples() {
	data := buildTestWAV(1000, 2)
	_, original, _, ok := parseWAV(data)
	s.Require().True(ok)

	chunks := splitAudio(data, "audio/wav", 300)
	var reassembled []byte
	for _, chunk := range chunks {
		_, samples, _, chunkOK := parseWAV(chunk.Data)
		s.Require().True(chunkOK)
		reassembled = append(reassembled, samples...)
	}
	s.Equal(original, reassembled)
}

func (s *TranscribeSuite) TestSplitAudioNeverSplitsCompressedContainers() {
	data := make([]byte, 1<<16)
	copy(data, "ID3\x03\x00\x00\x00\x00\x00\x00")

	chunks := splitAudio(data, "audio/mpeg", 1024)
	s.Require().Len(chunks, 1)
}

func (s *TranscribeSuite) TestTranscribeAssemblesChunksInOrder() {
	fake := newFakeTranscriber()
	transcriber := s.transcriber(fake, 300)
	sess := newSession(context.Background())
	defer sess.release()

	content, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(1000, 2)), model.AudioOptions{Language: model.AudioLanguageAuto})

	s.Require().NoError(err)
	s.Require().NotEmpty(content.Segments)
	for i, segment := range content.Segments {
		s.Equal(fmt.Sprintf("chunk-%d-text", i), segment.Text)
		s.Equal(i, segment.ChunkIndex)
	}
}

func (s *TranscribeSuite) TestFailedChunkBecomesOrderedGapMarker() {
	fake := newFakeTranscriber()
	fake.failChunks[1] = true
	transcriber := s.transcriber(fake, 300)
	sess := newSession(context.Background())
	defer sess.release()

	content, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(1000, 2)), model.AudioOptions{Language: model.AudioLanguageAuto})

	s.Require().NoError(err)
	s.Equal(1, content.GapCount)
	s.Require().GreaterOrEqual(len(content.Segments), 3)

	s.Equal("chunk-0-text", content.Segments[0].Text)
	s.Equal(transcriptGapMarker, content.Segments[1].Text)
	s.True(content.Segments[1].Gap)
	s.Equal(1, content.Segments[1].ChunkIndex)
	s.Equal("chunk-2-text", content.Segments[2].Text)
}

func (s *TranscribeSuite) TestChunkRetriesBeforeGivingUp() {
	fake := newFakeTranscriber()
	fake.failFirstAttempts[0] = 2
	transcriber := s.transcriber(fake, 1<<20)
	sess := newSession(context.Background())
	defer sess.release()

	content, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(100, 2)), model.AudioOptions{Language: model.AudioLanguageAuto})

	s.Require().NoError(err)
	s.Zero(content.GapCount)
	s.Equal(3, fake.callCount(0))
}

func (s *TranscribeSuite) TestAllChunksFailedIsTerminal() {
	fake := newFakeTranscriber()
	fake.failChunks[0] = true
	fake.failChunks[1] = true
	fake.failChunks[2] = true
	fake.failChunks[3] = true
	transcriber := s.transcriber(fake, 300)
	sess := newSession(context.Background())
	defer sess.release()

	_, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(1000, 2)), model.AudioOptions{Language: model.AudioLanguageAuto})

	s.Require().Error(err)
	s.True(errors.Is(err, ErrTranscription))

	stageErr, ok := AsStageError(err)
	s.Require().True(ok)
	s.Equal(StageTranscribe, stageErr.Stage)
}

func (s *TranscribeSuite) TestDetectedLanguageIsAdoptedUnderAuto() {
	fake := newFakeTranscriber()
	fake.language = "es"
	transcriber := s.transcriber(fake, 1<<20)
	sess := newSession(context.Background())
	defer sess.release()

	content, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(100, 2)), model.AudioOptions{Language: model.AudioLanguageAuto})

	s.Require().NoError(err)
	s.Equal("es", content.LanguageHint)
}

func (s *TranscribeSuite) TestExplicitLanguageOverridesDetection() {
	fake := newFakeTranscriber()
	fake.language = "es"
	transcriber := s.transcriber(fake, 1<<20)
	sess := newSession(context.Background())
	defer sess.release()

	content, err := transcriber.transcribe(context.Background(), sess, s.audioArtifact(buildTestWAV(100, 2)), model.AudioOptions{Language: "en"})

	s.Require().NoError(err)
	s.Equal("en", content.LanguageHint)
}

func (s *TranscribeSuite) TestTranscriptTextSkipsBlankSegments() {
	text := transcriptText([]model.TranscriptSegment{
		{Text: "first"},
		{Text: "   "},
		{Text: "second"},
	})
	s.Equal("first second", text)
}

func (s *TranscribeSuite) TestChunkCountRecoversChunkTotal() {
	s.Equal(3, chunkCount([]model.TranscriptSegment{
		{ChunkIndex: 0}, {ChunkIndex: 1}, {ChunkIndex: 1}, {ChunkIndex: 2},
	}))
	s.Equal(0, chunkCount(nil))
}
