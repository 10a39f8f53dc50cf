// Package render serializes validated clinical notes into distributable
// documents. It is a pure formatter: it never touches a model, never retries,
// and assumes its input already passed validation.
package render

import (
	"strings"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
	"github.com/Nephrolytics-ai/clinical-scribe/pkg/utils"
)

// Markdown renders the note with one heading per section, in the section
// order of the note's schema. Sections outside the schema keep their note
// order and follow the required ones.
func Markdown(note *model.ClinicalNote) (string, error) {
	sections, err := orderedSections(note)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	var b strings.Builder
	b.WriteString("# Clinical Note\n")
	for _, section := range sections {
		b.WriteString("\n## ")
		b.WriteString(strings.TrimSpace(section.Name))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(section.Content))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// PlainText renders the note with upper-case section titles separated by
// blank lines.
func PlainText(note *model.ClinicalNote) (string, error) {
	sections, err := orderedSections(note)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	var b strings.Builder
	for i, section := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.ToUpper(strings.TrimSpace(section.Name)))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(section.Content))
	}
	return b.String(), nil
}

// orderedSections arranges note sections into schema order. The note schema
// must be registered; extra sections are appended after the required set.
func orderedSections(note *model.ClinicalNote) ([]model.NoteSection, error) {
	schema, err := model.SchemaForVersion(note.SchemaVersion)
	if err != nil {
		return nil, err
	}

	ordered := make([]model.NoteSection, 0, len(note.Sections))
	used := make(map[int]bool, len(note.Sections))

	for _, name := range schema.RequiredSections {
		for i, section := range note.Sections {
			if used[i] {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(section.Name), name) {
				ordered = append(ordered, section)
				used[i] = true
				break
			}
		}
	}
	for i, section := range note.Sections {
		if !used[i] {
			ordered = append(ordered, section)
		}
	}
	return ordered, nil
}
