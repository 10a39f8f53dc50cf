package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Language is a note target language supported by the pipeline.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

func ParseLanguage(value string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(value))) {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageSpanish:
		return LanguageSpanish, nil
	}
	return "", fmt.Errorf("unsupported target language %q", value)
}

// DisplayName is the language name used inside model instructions.
func (l Language) DisplayName() string {
	switch l {
	case LanguageSpanish:
		return "Spanish"
	default:
		return "English"
	}
}

// NoteSection is one named block of a clinical note.
type NoteSection struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// NoteDraft is the structured wire shape the generative model is asked to
// produce. The orchestrator parses it and assembles a ClinicalNote; drafts are
// never returned to callers.
type NoteDraft struct {
	Language string        `json:"language" jsonschema_description:"Language the note is written in, as a lowercase ISO 639-1 code."`
	Sections []NoteSection `json:"sections" jsonschema_description:"Note sections in the requested order."`
}

// ClinicalNote is the pipeline's success output: every required section of
// its schema present and non-empty, in the target language.
type ClinicalNote struct {
	SchemaVersion string
	Language      Language
	Sections      []NoteSection
}

// Section returns the content of the named section, matching case-insensitively.
func (n *ClinicalNote) Section(name string) (string, bool) {
	for _, section := range n.Sections {
		if strings.EqualFold(strings.TrimSpace(section.Name), strings.TrimSpace(name)) {
			return section.Content, true
		}
	}
	return "", false
}

// NoteSchema names the sections a note version must carry, in order.
type NoteSchema struct {
	Version          string
	RequiredSections []string
}

const (
	// SchemaVersionSOAP is the four-section SOAP note.
	SchemaVersionSOAP = "soap-v1"
	// SchemaVersionConsult is the six-section consult note layout used by the
	// rendering collaborator.
	SchemaVersionConsult = "consult-v1"
)

var noteSchemas = map[string]NoteSchema{
	SchemaVersionSOAP: {
		Version:          SchemaVersionSOAP,
		RequiredSections: []string{"Subjective", "Objective", "Assessment", "Plan"},
	},
	SchemaVersionConsult: {
		Version: SchemaVersionConsult,
		RequiredSections: []string{
			"Present Illness",
			"Past Medical History",
			"Physical Examination and Calculations",
			"Summary of Labs and Images",
			"Proposed Diagnosis",
			"Analysis and Plan",
		},
	},
}

// SchemaForVersion resolves a registered note schema.
func SchemaForVersion(version string) (NoteSchema, error) {
	schema, ok := noteSchemas[strings.TrimSpace(version)]
	if !ok {
		return NoteSchema{}, errors.New("unknown note schema version " + strings.TrimSpace(version))
	}
	return schema, nil
}

// RegisteredSchemaVersions lists known schema versions in stable order.
func RegisteredSchemaVersions() []string {
	versions := make([]string, 0, len(noteSchemas))
	for version := range noteSchemas {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}
