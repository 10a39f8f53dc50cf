package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

type TranscriberSuite struct {
	suite.Suite
}

func TestTranscriberSuite(t *testing.T) {
	suite.Run(t, new(TranscriberSuite))
}

func (s *TranscriberSuite) TestResolveTranscriptionModelNameUsesDefault() {
	s.Equal(defaultModelName, resolveTranscriptionModelName(Config{}, model.AudioOptions{}))
}

func (s *TranscriberSuite) TestResolveTranscriptionModelNamePrefersOptions() {
	resolved := resolveTranscriptionModelName(Config{Model: "whisper-1"}, model.AudioOptions{Model: "gpt-4o-transcribe"})
	s.Equal("gpt-4o-transcribe", resolved)
}

func (s *TranscriberSuite) TestResolveTranscriptionModelNameFallsBackToConfig() {
	resolved := resolveTranscriptionModelName(Config{Model: "gpt-4o-mini-transcribe"}, model.AudioOptions{})
	s.Equal("gpt-4o-mini-transcribe", resolved)
}

func (s *TranscriberSuite) TestVerboseResponseParsesLanguageAndSegments() {
	raw := `{
		"text": "Patient reports chest pain. Started two days ago.",
		"language": "English",
		"duration": 12.5,
		"segments": [
			{"text": " Patient reports chest pain.", "start": 0.0, "end": 6.1},
			{"text": " Started two days ago.", "start": 6.1, "end": 12.5}
		]
	}`

	var verbose verboseTranscription
	s.Require().NoError(json.Unmarshal([]byte(raw), &verbose))

	s.Equal("English", verbose.Language)
	s.Require().Len(verbose.Segments, 2)
	s.Equal(0.0, verbose.Segments[0].Start)
	s.Equal(6.1, verbose.Segments[0].End)
}

func (s *TranscriberSuite) TestBuildCommonMissedWordsPromptUsesKeywordStructs() {
	prompt := buildCommonMissedWordsPrompt([]model.AudioKeyword{
		{
			Word:           "losartan",
			CommonMistypes: []string{"losarton"},
			Definition:     "An angiotensin II receptor blocker used to treat high blood pressure.",
		},
	})

	s.Equal(
		`Common missed words: [{"word":"losartan","common_mistypes":["losarton"],"definition":"An angiotensin II receptor blocker used to treat high blood pressure."}]`,
		prompt,
	)
}

func (s *TranscriberSuite) TestNormalizeAudioKeywordsDropsEmptyEntries() {
	normalized := normalizeAudioKeywords([]model.AudioKeyword{
		{Word: "  egfr  "},
		{Word: "   ", CommonMistypes: []string{"  "}},
	})

	s.Require().Len(normalized, 1)
	s.Equal("egfr", normalized[0].Word)
}

func (s *TranscriberSuite) TestCustomPromptOverridesKeywords() {
	prompt := buildTranscriptionPrompt(model.AudioOptions{
		Prompt:   "Transcribe verbatim.",
		Keywords: []model.AudioKeyword{{Word: "egfr"}},
	})
	s.Equal("Transcribe verbatim.", prompt)
}

func (s *TranscriberSuite) TestChunkFilenameMatchesContainer() {
	s.Equal("chunk.wav", chunkFilename("audio/wav"))
	s.Equal("chunk.wav", chunkFilename("audio/x-wav"))
	s.Equal("chunk.mp3", chunkFilename("audio/mpeg"))
	s.Equal("chunk.mp4", chunkFilename("video/mp4"))
	s.Equal("chunk.webm", chunkFilename("audio/webm"))
	s.Equal("chunk.bin", chunkFilename("application/octet-stream"))
}

func (s *TranscriberSuite) TestClassifyAPIErrorPassesNilThrough() {
	s.NoError(classifyAPIError(nil))
}
