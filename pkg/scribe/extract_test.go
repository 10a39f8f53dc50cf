package scribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// buildTestPDF assembles a two-page PDF: page one carries a text layer,
// page two has an empty content stream like a scanned page. Object offsets
// and the xref table are computed, not hard-coded.
func buildTestPDF(pageOneText string) []byte {
	contentOne := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageOneText)
	contentTwo := ""

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 7 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 6 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(contentOne), contentOne),
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(contentTwo), contentTwo),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, object := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, object)
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	return []byte(b.String())
}

type ExtractSuite struct {
	suite.Suite
}

func TestExtractSuite(t *testing.T) {
	suite.Run(t, new(ExtractSuite))
}

func (s *ExtractSuite) TestImageArtifactPassesThrough() {
	artifact := &model.Artifact{
		Data:     pngBytes(),
		Kind:     model.MediaKindImage,
		MIMEType: "image/png",
	}

	content, err := extractDocument(context.Background(), artifact)

	s.Require().NoError(err)
	s.Empty(content.Pages)
	s.Require().Len(content.Images, 1)
	s.Equal("image/png", content.Images[0].MIMEType)
	s.Equal(artifact.Data, content.Images[0].Data)
	s.Zero(content.Images[0].Page)
	s.Equal(model.LanguageUnspecified, content.LanguageHint)
}

func (s *ExtractSuite) TestPDFTextPagesAreExtractedPerPage() {
	data := buildTestPDF("Patient reports headache for 3 days")
	artifact := &model.Artifact{Data: data, Kind: model.MediaKindPDF, MIMEType: "application/pdf"}

	content, err := extractDocument(context.Background(), artifact)

	s.Require().NoError(err)
	s.Require().Len(content.Pages, 1)
	s.Equal(1, content.Pages[0].Page)
	s.Contains(content.Pages[0].Text, "Patient reports headache")
}

func (s *ExtractSuite) TestPDFPageWithoutTextBecomesImagePayload() {
	data := buildTestPDF("Patient reports headache for 3 days")
	artifact := &model.Artifact{Data: data, Kind: model.MediaKindPDF, MIMEType: "application/pdf"}

	content, err := extractDocument(context.Background(), artifact)

	s.Require().NoError(err)
	s.Require().Len(content.Images, 1)
	s.Equal(2, content.Images[0].Page)
	s.Equal("application/pdf", content.Images[0].MIMEType)
	s.Equal(data, content.Images[0].Data)
}

func (s *ExtractSuite) TestUnreadableContainerIsTerminal() {
	artifact := &model.Artifact{
		Data:     []byte("%PDF-1.4 but the rest is garbage with no xref"),
		Kind:     model.MediaKindPDF,
		MIMEType: "application/pdf",
	}

	_, err := extractDocument(context.Background(), artifact)

	s.Require().Error(err)
	s.True(errors.Is(err, ErrExtraction))

	stageErr, ok := AsStageError(err)
	s.Require().True(ok)
	s.Equal(StageExtract, stageErr.Stage)
}
