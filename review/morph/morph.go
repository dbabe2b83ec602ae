// Package morph splits a Korean phrase into leaves tagged with the part of speech the lexicon
// scorer cares about. It is a rule-based approximation: known dictionary forms win, then suffix
// heuristics decide between adverb, predicate and noun.
package morph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Tag is the coarse part of speech of a leaf.
type Tag int

const (
	Other Tag = iota
	Noun
	Adjective
	Adverb
)

func (t Tag) String() string {
	switch t {
	case Noun:
		return "Noun"
	case Adjective:
		return "Adjective"
	case Adverb:
		return "Adverb"
	default:
		return "Other"
	}
}

// Leaf is one analysed token. Form is the dictionary form used for lookups.
type Leaf struct {
	Surface string
	Form    string
	Tag     Tag
}

// Dictionary reports the tag of a form the lexicon already knows.
type Dictionary interface {
	TagOf(form string) (Tag, bool)
}

// DictionaryFunc adapts a function to Dictionary.
type DictionaryFunc func(form string) (Tag, bool)

func (f DictionaryFunc) TagOf(form string) (Tag, bool) { return f(form) }

// Analyzer decomposes phrases. The zero value works without a dictionary.
type Analyzer struct {
	Dict Dictionary
}

// Analyze returns one leaf per token of phrase, in order. Tokens without letters are tagged Other.
func (a Analyzer) Analyze(phrase string) []Leaf {
	phrase = norm.NFC.String(phrase)
	tokens := strings.FieldsFunc(phrase, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '~')
	})
	out := make([]Leaf, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, a.analyzeToken(tok))
	}
	return out
}

func (a Analyzer) analyzeToken(tok string) Leaf {
	tok = strings.Trim(tok, "~")
	if !hasLetter(tok) {
		return Leaf{Surface: tok, Form: tok, Tag: Other}
	}

	cands := Candidates(tok)
	if a.Dict != nil {
		for _, c := range cands {
			if tag, ok := a.Dict.TagOf(c.Form); ok {
				return Leaf{Surface: tok, Form: c.Form, Tag: tag}
			}
		}
	}
	for _, c := range cands {
		if c.Tag != Other {
			return Leaf{Surface: tok, Form: c.Form, Tag: c.Tag}
		}
	}
	return Leaf{Surface: tok, Form: tok, Tag: Noun}
}

// Candidate is one possible dictionary form of a token with the tag its suffix suggests.
// The surface form carries Other unless a suffix identifies it.
type Candidate struct {
	Form string
	Tag  Tag
}

// Adverbial suffixes are checked first so 맛있게 stays an adverb.
var adverbSuffixes = []string{"스럽게", "롭게", "하게", "게", "히"}

// Copula endings attach to nouns: 최고였어요, 환상적이었다.
var copulaEndings = []string{
	"이었습니다", "였습니다", "이었어요", "였어요", "이었다", "였다",
	"입니다", "이에요", "예요", "이네요", "이다", "이라서",
}

// Predicate endings, longest first. The stem plus 다 (or 하다) is the dictionary form.
var predicateEndings = []string{
	"했습니다", "합니다", "했어요", "하네요", "하지만", "해요", "했다", "하다", "하고", "한데", "한",
	"었습니다", "았습니다", "습니다", "었어요", "았어요", "어요", "아요", "었다", "았다",
	"는데", "지만", "네요", "군요", "다",
}

var particles = []string{
	"에서는", "에서", "으로", "이랑", "까지", "부터", "보다", "처럼", "한테", "에게",
	"은", "는", "이", "가", "을", "를", "에", "의", "도", "만", "로", "와", "과", "랑",
}

// Candidates lists the forms worth looking up for tok, surface first.
func Candidates(tok string) []Candidate {
	var out []Candidate
	seen := map[string]int{}
	add := func(form string, tag Tag) {
		if form == "" {
			return
		}
		if i, ok := seen[form]; ok {
			if out[i].Tag == Other {
				out[i].Tag = tag
			}
			return
		}
		seen[form] = len(out)
		out = append(out, Candidate{Form: form, Tag: tag})
	}

	if stem, suf, ok := cutAny(tok, adverbSuffixes); ok {
		add(tok, Adverb)
		if suf == "하게" {
			add(stem+"하다", Adjective)
		} else {
			add(stem+"다", Adjective)
		}
		return out
	}

	add(tok, Other)
	if stem, _, ok := cutAny(tok, copulaEndings); ok {
		add(stem, Noun)
	}
	if stem, end, ok := cutAny(tok, predicateEndings); ok {
		if isHadaEnding(end) {
			add(stem+"하다", Adjective)
			add(stem, Noun)
		} else {
			add(stem+"다", Adjective)
		}
	}
	if stem, _, ok := cutAny(tok, particles); ok {
		add(stem, Noun)
	}
	return out
}

func isHadaEnding(end string) bool {
	for _, p := range []string{"하", "해", "했", "한", "합"} {
		if strings.HasPrefix(end, p) {
			return true
		}
	}
	return false
}

func cutAny(s string, suffixes []string) (string, string, bool) {
	for _, suf := range suffixes {
		if stem, ok := cut(s, suf); ok {
			return stem, suf, true
		}
	}
	return "", "", false
}

// cut removes suffix when at least one rune remains.
func cut(s, suffix string) (string, bool) {
	if !strings.HasSuffix(s, suffix) {
		return "", false
	}
	stem := strings.TrimSuffix(s, suffix)
	if utf8.RuneCountInString(stem) < 1 {
		return "", false
	}
	return stem, true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
