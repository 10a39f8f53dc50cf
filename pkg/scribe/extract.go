package scribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// extractDocument normalizes a pdf or image artifact into ExtractedContent.
// Absence of text is never an error: an image artifact, or a scanned PDF
// page with no text layer, becomes an ImagePayload the vision-capable model
// reads directly. Only a structurally unreadable container fails.
func extractDocument(ctx context.Context, artifact *model.Artifact) (*model.ExtractedContent, error) {
	log := logging.NewLogger(ctx)

	if artifact.Kind == model.MediaKindImage {
		log.Infof("stage=%s media_kind=%s pass-through", StageExtract, artifact.Kind)
		return &model.ExtractedContent{
			Images:       []model.ImagePayload{{Data: artifact.Data, MIMEType: artifact.MIMEType}},
			LanguageHint: model.LanguageUnspecified,
		}, nil
	}

	pages, imagePages, err := extractPDFPages(artifact.Data)
	if err != nil {
		return nil, newStageError(StageExtract, ErrExtraction, "document container is unreadable", err)
	}

	content := &model.ExtractedContent{
		Pages:        pages,
		LanguageHint: model.LanguageUnspecified,
	}
	for _, page := range imagePages {
		content.Images = append(content.Images, model.ImagePayload{
			// The vision model reads PDFs natively, so an image-only page is
			// delivered as the document bytes plus the page to read.
			Data:     artifact.Data,
			MIMEType: "application/pdf",
			Page:     page,
		})
	}

	if content.Empty() {
		return nil, newStageError(StageExtract, ErrExtraction, "document has no pages", nil)
	}

	log.Infof(
		"stage=%s media_kind=%s text_pages=%d image_only_pages=%d",
		StageExtract, artifact.Kind, len(content.Pages), len(content.Images),
	)
	return content, nil
}

// extractPDFPages returns per-page text and the page numbers that yielded no
// extractable text. The pdf library panics on some malformed inputs, so the
// whole walk runs under a recover that converts panics into errors.
func extractPDFPages(data []byte) (pages []model.PageText, imagePages []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, imagePages = nil, nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}

	total := reader.NumPage()
	if total < 1 {
		return nil, nil, fmt.Errorf("pdf reports %d pages", total)
	}

	for number := 1; number <= total; number++ {
		page := reader.Page(number)
		if page.V.IsNull() {
			imagePages = append(imagePages, number)
			continue
		}

		text, textErr := page.GetPlainText(nil)
		if textErr != nil || strings.TrimSpace(text) == "" {
			imagePages = append(imagePages, number)
			continue
		}
		pages = append(pages, model.PageText{Page: number, Text: strings.TrimSpace(text)})
	}

	return pages, imagePages, nil
}
