package scribe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

type ClassifierSuite struct {
	suite.Suite
}

func TestClassifierSuite(t *testing.T) {
	suite.Run(t, new(ClassifierSuite))
}

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\n%%EOF\n")
}

func pngBytes() []byte {
	return []byte{
		0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00,
	}
}

func (s *ClassifierSuite) TestClassifiesPDFBySignature() {
	kind, mime, err := classifyArtifact(pdfBytes())

	s.Require().NoError(err)
	s.Equal(model.MediaKindPDF, kind)
	s.Equal("application/pdf", mime)
}

func (s *ClassifierSuite) TestClassifiesPNGBySignature() {
	kind, mime, err := classifyArtifact(pngBytes())

	s.Require().NoError(err)
	s.Equal(model.MediaKindImage, kind)
	s.Equal("image/png", mime)
}

func (s *ClassifierSuite) TestClassifiesWAVAsAudio() {
	kind, _, err := classifyArtifact(buildTestWAV(64, 2))

	s.Require().NoError(err)
	s.Equal(model.MediaKindAudio, kind)
}

func (s *ClassifierSuite) TestIgnoresDeclaredHintMismatch() {
	// Classification reads bytes only; a PDF uploaded as "audio" still
	// classifies as a PDF.
	kind, _, err := classifyArtifact(pdfBytes())

	s.Require().NoError(err)
	s.Equal(model.MediaKindPDF, kind)
}

func (s *ClassifierSuite) TestRejectsUnrecognizedBytes() {
	kind, _, err := classifyArtifact([]byte("plain text is not a clinical artifact"))

	s.Require().Error(err)
	s.Equal(model.MediaKindUnsupported, kind)
	s.True(errors.Is(err, ErrUnsupportedMedia))

	stageErr, ok := AsStageError(err)
	s.Require().True(ok)
	s.Equal(StageClassify, stageErr.Stage)
}

func (s *ClassifierSuite) TestRejectsTruncatedPayload() {
	_, _, err := classifyArtifact([]byte("%PDF"))

	s.Require().Error(err)
	s.True(errors.Is(err, ErrUnsupportedMedia))
}

func (s *ClassifierSuite) TestRejectsEmptyPayload() {
	_, _, err := classifyArtifact(nil)

	s.Require().Error(err)
	s.True(errors.Is(err, ErrUnsupportedMedia))
}
