package scoring

import (
	"regexp"
	"strings"

	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
)

// Span is one marked phrase. Target names the span it modifies, empty when unannotated.
type Span struct {
	Text   string `json:"text"`
	Target string `json:"target,omitempty"`
}

// ****phrase**** optionally followed by (수식어구: target) or (modifies: target).
var spanPattern = regexp.MustCompile(`\*\*\*\*([^*]+?)\*\*\*\*(?:\((?:수식어구|modifies)\s*:\s*([^)]+?)\))?`)

// ParseSpans extracts marked spans in order of appearance.
func ParseSpans(sentence string) []Span {
	matches := spanPattern.FindAllStringSubmatch(sentence, -1)
	out := make([]Span, 0, len(matches))
	for _, m := range matches {
		text := lexicon.NormalizePhrase(m[1])
		if text == "" {
			continue
		}
		out = append(out, Span{Text: text, Target: lexicon.NormalizePhrase(m[2])})
	}
	return out
}

// PlainText removes span markers and modifier annotations, leaving readable text.
func PlainText(sentence string) string {
	s := spanPattern.ReplaceAllString(sentence, "$1")
	return strings.Join(strings.Fields(s), " ")
}
