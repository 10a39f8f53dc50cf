package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// orchestrator runs one generation attempt: invoke the model under a bounded
// timeout, then structurally parse its raw output into a candidate note.
// Retry policy lives in the pipeline loop so the attempt ceiling shared with
// validation stays one explicit counter.
type orchestrator struct {
	generator model.NoteGenerator
	timeout   time.Duration
}

// parseError marks a model response that came back but was not in the
// expected structured form. It is retryable, and its reason feeds the next
// prompt.
type parseError struct {
	reason string
}

func (e *parseError) Error() string {
	return "structural parse failed: " + e.reason
}

func (o *orchestrator) generateCandidate(
	ctx context.Context,
	req *model.GenerationRequest,
) (*model.ClinicalNote, model.GenerationMetadata, error) {
	log := logging.NewLogger(ctx)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, meta, err := o.generator.GenerateNote(callCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, meta, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// The per-call deadline fired, not the caller's context; treat it
			// like any other transient upstream condition.
			err = model.MarkTransient(err)
		}
		log.Errorf("stage=%s attempt=%d error: %v", StageGenerate, req.Attempt, err)
		return nil, meta, utils.WrapIfNotNil(err)
	}

	draft, err := parseNoteDraft(raw)
	if err != nil {
		log.Warnf("stage=%s attempt=%d %v", StageGenerate, req.Attempt, err)
		return nil, meta, err
	}

	log.Infof(
		"stage=%s attempt=%d sections=%d provider=%s model=%s latency_ms=%s",
		StageGenerate,
		req.Attempt,
		len(draft.Sections),
		meta[model.MetadataKeyProvider],
		meta[model.MetadataKeyModel],
		meta[model.MetadataKeyLatencyMs],
	)
	return assembleCandidate(draft, req), meta, nil
}

// parseNoteDraft decodes the model's raw output into the draft wire shape.
// Providers that cannot enforce a response schema tend to wrap JSON in code
// fences or prose, so the payload is carved out before decoding.
func parseNoteDraft(raw string) (*model.NoteDraft, error) {
	payload := extractJSONPayload(raw)
	if payload == "" {
		return nil, &parseError{reason: "response is empty"}
	}

	var draft model.NoteDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, &parseError{reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if len(draft.Sections) == 0 {
		return nil, &parseError{reason: "response carries no sections"}
	}
	return &draft, nil
}

// extractJSONPayload strips code fences and surrounding prose down to the
// outermost JSON object.
func extractJSONPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func assembleCandidate(draft *model.NoteDraft, req *model.GenerationRequest) *model.ClinicalNote {
	sections := make([]model.NoteSection, 0, len(draft.Sections))
	for _, section := range draft.Sections {
		sections = append(sections, model.NoteSection{
			Name:    strings.TrimSpace(section.Name),
			Content: strings.TrimSpace(section.Content),
		})
	}

	return &model.ClinicalNote{
		SchemaVersion: req.SchemaVersion,
		Language:      req.TargetLanguage,
		Sections:      sections,
	}
}
