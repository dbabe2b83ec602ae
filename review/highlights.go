package review

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// NegativeHighlightLimit caps how many negative sentences feed the complaint summary.
const NegativeHighlightLimit = 50

// NegativeHighlights dedupes sentences, drops ones shorter than three runes and orders the rest
// longest first. limit <= 0 keeps everything.
func NegativeHighlights(sentences []string, limit int) []string {
	out := dedupeStrings(sentences)
	kept := out[:0]
	for _, s := range out {
		if utf8.RuneCountInString(s) >= 3 {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return utf8.RuneCountInString(kept[i]) > utf8.RuneCountInString(kept[j])
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
