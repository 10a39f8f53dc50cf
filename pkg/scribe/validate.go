package scribe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Nephrolytics-ai/clinical-scribe/pkg/model"
)

// placeholderPatterns reject sections the model filled with boilerplate
// instead of content. A note where a section is only placeholder text is a
// generation failure, never a valid note.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(n/?a|none|not applicable|no aplica|unknown|tbd|pending)[.\s]*$`),
	regexp.MustCompile(`(?i)^\s*no (information|data|findings)? ?(provided|available)[.\s]*$`),
	regexp.MustCompile(`(?i)^\s*\[(insert|placeholder|todo)[^\]]*\]\s*$`),
	regexp.MustCompile(`^\s*[-.*\s]*$`),
}

// Stopword lists for the lightweight language heuristic. Words unique to one
// of the two supported languages; ambiguous forms are left out.
var (
	englishStopwords = []string{" the ", " and ", " with ", " of ", " for ", " was ", " were ", " has ", " is ", " reports "}
	spanishStopwords = []string{" el ", " la ", " los ", " las ", " con ", " de ", " para ", " una ", " fue ", " refiere ", " presenta ", " y "}
)

// minWordsForLanguageCheck skips the heuristic on notes too short to score
// reliably.
const minWordsForLanguageCheck = 12

// validateNote checks a candidate against its schema and target language.
// A non-nil return is the specific, caller-safe reason the note was
// rejected; it feeds the next corrective generation attempt.
func validateNote(note *model.ClinicalNote, schema model.NoteSchema, target model.Language) error {
	for _, required := range schema.RequiredSections {
		content, ok := note.Section(required)
		if !ok {
			return fmt.Errorf("required section %q is missing", required)
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("required section %q is empty", required)
		}
		if isPlaceholder(content) {
			return fmt.Errorf("required section %q contains only placeholder text", required)
		}
	}

	if reason := checkLanguage(note, target); reason != "" {
		return fmt.Errorf("%s", reason)
	}
	return nil
}

func isPlaceholder(content string) bool {
	trimmed := strings.TrimSpace(content)
	for _, pattern := range placeholderPatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// checkLanguage scores the whole note against stopword lists for the two
// supported languages. It is a deliberate heuristic, not language
// identification: it only has to catch a note generated in the wrong one of
// two known languages.
func checkLanguage(note *model.ClinicalNote, target model.Language) string {
	var b strings.Builder
	for _, section := range note.Sections {
		b.WriteString(section.Content)
		b.WriteString(" ")
	}
	text := " " + strings.ToLower(b.String()) + " "

	if len(strings.Fields(text)) < minWordsForLanguageCheck {
		return ""
	}

	english := countOccurrences(text, englishStopwords)
	spanish := countOccurrences(text, spanishStopwords)

	switch target {
	case model.LanguageEnglish:
		if spanish > english*2 && spanish >= 3 {
			return "note text appears to be Spanish but the requested language is English"
		}
	case model.LanguageSpanish:
		if english > spanish*2 && english >= 3 {
			return "note text appears to be English but the requested language is Spanish"
		}
	}
	return ""
}

func countOccurrences(text string, needles []string) int {
	total := 0
	for _, needle := range needles {
		total += strings.Count(text, needle)
	}
	return total
}
