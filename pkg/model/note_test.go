package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type NoteModelSuite struct {
	suite.Suite
}

func TestNoteModelSuite(t *testing.T) {
	suite.Run(t, new(NoteModelSuite))
}

func (s *NoteModelSuite) TestParseLanguageAcceptsSupportedCodes() {
	language, err := ParseLanguage(" EN ")
	s.Require().NoError(err)
	s.Equal(LanguageEnglish, language)

	language, err = ParseLanguage("es")
	s.Require().NoError(err)
	s.Equal(LanguageSpanish, language)
}

func (s *NoteModelSuite) TestParseLanguageRejectsUnknownCode() {
	_, err := ParseLanguage("fr")
	s.Require().Error(err)
	s.Contains(err.Error(), "unsupported target language")
}

func (s *NoteModelSuite) TestSchemaForVersionResolvesSOAP() {
	schema, err := SchemaForVersion(SchemaVersionSOAP)
	s.Require().NoError(err)
	s.Equal([]string{"Subjective", "Objective", "Assessment", "Plan"}, schema.RequiredSections)
}

func (s *NoteModelSuite) TestSchemaForVersionResolvesConsult() {
	schema, err := SchemaForVersion(SchemaVersionConsult)
	s.Require().NoError(err)
	s.Len(schema.RequiredSections, 6)
	s.Equal("Present Illness", schema.RequiredSections[0])
	s.Equal("Analysis and Plan", schema.RequiredSections[5])
}

func (s *NoteModelSuite) TestSchemaForVersionUnknownReturnsError() {
	_, err := SchemaForVersion("soap-v9")
	s.Require().Error(err)
	s.Contains(err.Error(), "unknown note schema version")
}

func (s *NoteModelSuite) TestRegisteredSchemaVersionsIsStable() {
	s.Equal(RegisteredSchemaVersions(), RegisteredSchemaVersions())
	s.Contains(RegisteredSchemaVersions(), SchemaVersionSOAP)
}

func (s *NoteModelSuite) TestNoteSectionLookupIsCaseInsensitive() {
	note := &ClinicalNote{
		Sections: []NoteSection{{Name: "Subjective", Content: "reports headache"}},
	}

	content, ok := note.Section("subjective")
	s.True(ok)
	s.Equal("reports headache", content)

	_, ok = note.Section("Plan")
	s.False(ok)
}

func (s *NoteModelSuite) TestTransientMarkingSurvivesWrapping() {
	base := errors.New("rate limited")
	marked := MarkTransient(base)

	s.True(IsTransient(marked))
	s.True(IsTransient(errors.Join(errors.New("outer"), marked)))
	s.False(IsTransient(base))
	s.Nil(MarkTransient(nil))
}

func (s *NoteModelSuite) TestExtractedContentEmpty() {
	s.True((&ExtractedContent{}).Empty())
	s.True((*ExtractedContent)(nil).Empty())
	s.False((&ExtractedContent{Pages: []PageText{{Page: 1, Text: "x"}}}).Empty())
}
