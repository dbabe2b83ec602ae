package lexicon

import (
	"strconv"
	"strings"
)

// Category is one of the seven lexicon tables. The numeric values match the category numbers
// the resolver prompt asks the oracle to answer with.
type Category int

const (
	Idiom Category = iota + 1
	Amplifier
	Downtoner
	Negator
	Adjective
	Adverb
	Noun
)

// Categories lists every category in lookup order.
var Categories = []Category{Idiom, Amplifier, Downtoner, Negator, Adjective, Adverb, Noun}

func (c Category) String() string {
	switch c {
	case Idiom:
		return "idiom"
	case Amplifier:
		return "amplifier"
	case Downtoner:
		return "downtoner"
	case Negator:
		return "negator"
	case Adjective:
		return "adjective"
	case Adverb:
		return "adverb"
	case Noun:
		return "noun"
	default:
		return "unknown"
	}
}

// Label is the Korean name used in prompts.
func (c Category) Label() string {
	switch c {
	case Idiom:
		return "관용어"
	case Amplifier:
		return "강조어"
	case Downtoner:
		return "완화어"
	case Negator:
		return "부정어"
	case Adjective:
		return "감성 형용사"
	case Adverb:
		return "감성 부사"
	case Noun:
		return "감성 명사"
	default:
		return ""
	}
}

// FileName is the backing CSV table for the category.
func (c Category) FileName() string {
	switch c {
	case Idiom:
		return "idioms.csv"
	case Amplifier:
		return "amplifiers.csv"
	case Downtoner:
		return "downtoners.csv"
	case Negator:
		return "negators.csv"
	case Adjective:
		return "adjectives.csv"
	case Adverb:
		return "adverbs.csv"
	case Noun:
		return "sentiment_nouns.csv"
	default:
		return ""
	}
}

// IsModifier reports whether entries of the category modify another span instead of carrying
// their own score.
func (c Category) IsModifier() bool {
	return c == Amplifier || c == Downtoner || c == Negator
}

// HasMultiplier reports whether stored values are multipliers rather than scores.
func (c Category) HasMultiplier() bool {
	return c == Amplifier || c == Downtoner
}

func (c Category) valueColumn() string {
	switch {
	case c == Negator:
		return ""
	case c.HasMultiplier():
		return "multiplier"
	default:
		return "score"
	}
}

func (c Category) header() []string {
	if col := c.valueColumn(); col != "" {
		return []string{"phrase", col}
	}
	return []string{"phrase"}
}

func (c Category) valid() bool {
	return c >= Idiom && c <= Noun
}

// ParseCategory accepts the numeric form ("1".."7") or the English name.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		c := Category(n)
		return c, c.valid()
	}
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}
