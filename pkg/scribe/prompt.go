package scribe

import (
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// Instruction templates. The builder is deterministic: the same content,
// language, schema, template, and retry reason always produce byte-identical
// instructions, so regenerated attempts differ only where the retry reason
// says they should.
const (
	TemplateIDClinicalNote = "clinical-note-v1"
	TemplateIDQuickReport  = "quick-report-v1"
)

// sectionGuidance carries the per-section scribe directions. Names match the
// registered note schemas.
var sectionGuidance = map[string]string{
	"Subjective": "Narrate the patient's reported symptoms, history of present illness, and concerns in their own clinical framing.",
	"Objective":  "Record observed findings: vitals, physical exam, and measurable data. Perform calculations (such as BMI) only when the inputs for them are present.",
	"Assessment": "State the clinical impression supported by the subjective and objective material, ordered from most to least likely.",
	"Plan":       "List further tests, treatments, consultations, and patient education the material supports.",

	"Present Illness":                       "Write a concise narrative 'History of Present Illness' paragraph suitable for a clinical note, using only HPI-relevant material.",
	"Past Medical History":                  "List past medical history and risk factors, including surgical, family, and social history when mentioned.",
	"Physical Examination and Calculations": "Summarize exam findings. Extract numerical data such as vital signs or measurements, and perform calculations only when their inputs are present. Describe findings visible in images objectively.",
	"Summary of Labs and Images":            "Summarize key findings from lab reports and imaging, highlighting abnormal values. Mention study name and date when available.",
	"Proposed Diagnosis":                    "List proposed or differential diagnoses from most to least likely, each with a one-sentence justification when the material supports one.",
	"Analysis and Plan":                     "Synthesize all of the material into a coherent assessment and an actionable plan: further tests, treatments, consultations, and patient education.",
}

// buildGenerationRequest composes one immutable generation attempt. On a
// retry, retryReason carries the specific prior failure so the next attempt
// is corrective rather than a blind repeat.
func buildGenerationRequest(
	content *model.ExtractedContent,
	target model.Language,
	schema model.NoteSchema,
	templateID string,
	attempt int,
	retryReason string,
) *model.GenerationRequest {
	var b strings.Builder

	switch templateID {
	case TemplateIDQuickReport:
		b.WriteString("You are a clinical assistant producing a quick, concise report from the material provided with this request.\n")
	default:
		templateID = TemplateIDClinicalNote
		b.WriteString("You are a medical scribe assistant composing a structured clinical note from the material provided with this request.\n")
	}

	b.WriteString("\nOutput contract:\n")
	b.WriteString("- Respond with a single JSON object of the form {\"language\": \"<ISO 639-1 code>\", \"sections\": [{\"name\": \"...\", \"content\": \"...\"}]}.\n")
	fmt.Fprintf(&b, "- Produce exactly these sections, in this order: %s.\n", strings.Join(schema.RequiredSections, "; "))
	fmt.Fprintf(&b, "- Write every section in %s (%s).", target.DisplayName(), string(target))
	if content.LanguageHint != model.LanguageUnspecified && content.LanguageHint != string(target) {
		fmt.Fprintf(&b, " The source material is in another language (%s); translate it faithfully rather than reproducing it.", content.LanguageHint)
	}
	b.WriteString("\n")
	b.WriteString("- Use only information supported by the provided material. Omit anything the material does not state; never invent clinical findings, history, or measurements.\n")
	b.WriteString("- Leave no section empty: when the material offers nothing for a section, state what was reviewed and that it contains no findings for that section.\n")

	if templateID == TemplateIDClinicalNote {
		b.WriteString("\nSection guidance:\n")
		for _, name := range schema.RequiredSections {
			if guidance, ok := sectionGuidance[name]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", name, guidance)
			}
		}
	}

	if content.GapCount > 0 {
		fmt.Fprintf(
			&b,
			"\nThe transcript contains %d inaudible gap marker(s) reading %q. Treat the missing speech as unavailable, not as content to reconstruct.\n",
			content.GapCount,
			transcriptGapMarker,
		)
	}

	if retryReason != "" {
		fmt.Fprintf(
			&b,
			"\nA previous attempt was rejected: %s. Correct that specific problem and regenerate the complete note.\n",
			retryReason,
		)
	}

	return &model.GenerationRequest{
		Instructions:   b.String(),
		Parts:          buildParts(content),
		TargetLanguage: target,
		SchemaVersion:  schema.Version,
		TemplateID:     templateID,
		Attempt:        attempt,
	}
}

// buildParts lays the extracted material out in a fixed order: transcript,
// page texts by page number, then visual payloads by page number.
func buildParts(content *model.ExtractedContent) []model.GenerationPart {
	parts := make([]model.GenerationPart, 0, 1+len(content.Pages)+len(content.Images))

	if transcript := transcriptText(content.Segments); transcript != "" {
		parts = append(parts, model.GenerationPart{
			Text: "Encounter transcript:\n" + transcript,
		})
	}

	for _, page := range content.Pages {
		parts = append(parts, model.GenerationPart{
			Text: fmt.Sprintf("Document page %d:\n%s", page.Page, page.Text),
		})
	}

	// Image-only document pages share one copy of the document bytes; the
	// notice tells the model which pages to read visually.
	var documentPages []string
	var documentPayload *model.ImagePayload
	for _, image := range content.Images {
		if image.Page > 0 {
			documentPages = append(documentPages, fmt.Sprintf("%d", image.Page))
			if documentPayload == nil {
				payload := image
				documentPayload = &payload
			}
			continue
		}
		parts = append(parts, model.GenerationPart{
			Data:     image.Data,
			MIMEType: image.MIMEType,
		})
	}
	if documentPayload != nil {
		parts = append(parts, model.GenerationPart{
			Text: fmt.Sprintf(
				"Page(s) %s of the attached document have no text layer; read them visually.",
				strings.Join(documentPages, ", "),
			),
		})
		parts = append(parts, model.GenerationPart{
			Data:     documentPayload.Data,
			MIMEType: documentPayload.MIMEType,
		})
	}

	return parts
}
