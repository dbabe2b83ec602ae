// Package scoring turns one marked summary sentence into a polarity score. Known phrases come from
// the lexicon; unknown ones are resolved through an oracle and learned.
package scoring

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
	"github.com/theimaginaryfoundation/review-sentiment/review/morph"
)

const baselineScore = 0.3

// LexemeResolver scores a lexeme the lexicon does not know.
type LexemeResolver interface {
	Resolve(ctx context.Context, lexeme, posHint string, hint lexicon.Polarity) (float64, error)
}

// Scorer is safe for concurrent use; the lexicon serializes its own writes.
type Scorer struct {
	store    *lexicon.Store
	resolver LexemeResolver
	analyzer morph.Analyzer
	logger   *zap.Logger
}

// NewScorer builds a scorer over store. resolver may be nil, in which case unknown lexemes
// contribute nothing.
func NewScorer(store *lexicon.Store, resolver LexemeResolver, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{store: store, resolver: resolver, logger: logger}
	s.analyzer = morph.Analyzer{Dict: morph.DictionaryFunc(s.tagOf)}
	return s
}

func (s *Scorer) tagOf(form string) (morph.Tag, bool) {
	c, ok := s.store.CategoryOf(form)
	if !ok {
		return morph.Other, false
	}
	switch c {
	case lexicon.Adjective:
		return morph.Adjective, true
	case lexicon.Adverb:
		return morph.Adverb, true
	case lexicon.Noun:
		return morph.Noun, true
	default:
		return morph.Other, true
	}
}

// SpanTrace records how one span was handled.
type SpanTrace struct {
	Span     Span             `json:"span"`
	Modifier lexicon.Category `json:"modifier,omitempty"`
	Score    float64          `json:"score"`
	// Key is the deferred slot the score went to, empty when it was added to a bucket directly.
	Key     string `json:"key,omitempty"`
	Applied bool   `json:"applied,omitempty"`
}

// Trace is the full derivation of one sentence score.
type Trace struct {
	Sentence string      `json:"sentence"`
	Polarity string      `json:"polarity"`
	Baseline float64     `json:"baseline"`
	Spans    []SpanTrace `json:"spans"`
	Positive float64     `json:"positive_bucket"`
	Negative float64     `json:"negative_bucket"`
	Score    float64     `json:"score"`
}

// ScoreSentence scores one line under the declared context flags.
func (s *Scorer) ScoreSentence(ctx context.Context, sentence string, positive, negative bool) float64 {
	return s.ScoreDetailed(ctx, sentence, positive, negative).Score
}

// ScoreDetailed is ScoreSentence with the per-span derivation.
//
// Content spans are scored first. A span that names a target, or that some modifier targets, is
// held under that key; everything else goes to the positive or negative bucket. Modifiers then
// scale or negate their target, and held scores are folded in first-appearance order. The
// baseline is only returned when no span moved either bucket.
func (s *Scorer) ScoreDetailed(ctx context.Context, sentence string, positive, negative bool) Trace {
	pol := lexicon.PolarityOf(positive, negative)
	tr := Trace{Sentence: sentence, Polarity: pol.String(), Baseline: baseline(pol)}

	spans := ParseSpans(sentence)
	modifiers := make(map[int]lexicon.Category)
	targeted := make(map[string]bool)
	for i, sp := range spans {
		if c, ok := s.store.ModifierOf(sp.Text); ok {
			modifiers[i] = c
			if sp.Target != "" {
				targeted[sp.Target] = true
			}
		}
	}

	var pos, neg float64
	add := func(v float64) {
		if v > 0 {
			pos += v
		} else if v < 0 {
			neg += v
		}
	}

	held := make(map[string]float64)
	var order []string
	hold := func(key string, v float64) {
		if _, ok := held[key]; !ok {
			order = append(order, key)
		}
		held[key] += v
	}

	for i, sp := range spans {
		if c, ok := modifiers[i]; ok {
			tr.Spans = append(tr.Spans, SpanTrace{Span: sp, Modifier: c})
			continue
		}
		v := s.scoreSpan(ctx, sp.Text, pol)
		st := SpanTrace{Span: sp, Score: v}
		switch {
		case sp.Target != "":
			st.Key = sp.Target
			hold(sp.Target, v)
		case targeted[sp.Text]:
			st.Key = sp.Text
			hold(sp.Text, v)
		default:
			add(v)
		}
		tr.Spans = append(tr.Spans, st)
	}

	for i, sp := range spans {
		c, ok := modifiers[i]
		if !ok || sp.Target == "" {
			continue
		}
		v, ok := held[sp.Target]
		if !ok {
			s.logger.Debug("modifier target not found",
				zap.String("modifier", sp.Text),
				zap.String("target", sp.Target),
			)
			continue
		}
		switch c {
		case lexicon.Negator:
			held[sp.Target] = -v
		default:
			vals := s.store.Lookup(sp.Text, c)
			if len(vals) == 0 {
				continue
			}
			held[sp.Target] = v * vals[0]
		}
		tr.Spans[i].Applied = true
	}

	for _, key := range order {
		add(held[key])
	}

	tr.Positive, tr.Negative = pos, neg
	if pos == 0 && neg == 0 {
		tr.Score = tr.Baseline
	} else {
		tr.Score = pos + neg
	}
	return tr
}

// scoreSpan returns the own contribution of a non-modifier span.
func (s *Scorer) scoreSpan(ctx context.Context, text string, pol lexicon.Polarity) float64 {
	if s.store.Contains(text, lexicon.Idiom) {
		if v, ok := lexicon.SelectContextual(s.store.Lookup(text, lexicon.Idiom), pol); ok {
			return v
		}
		return s.resolve(ctx, text, lexicon.Idiom.Label(), pol)
	}
	if utf8.RuneCountInString(text) < 2 && !s.store.IsKnown(text) {
		return 0
	}

	var sum float64
	for _, leaf := range s.analyzer.Analyze(text) {
		c, ok := leafCategory(leaf.Tag)
		if !ok {
			continue
		}
		if vals := s.store.Lookup(leaf.Form, c); len(vals) > 0 {
			sum += pickOrDefault(vals, pol)
			continue
		}
		if known, ok := s.store.CategoryOf(leaf.Form); ok {
			if known.IsModifier() {
				continue
			}
			if vals := s.store.Lookup(leaf.Form, known); len(vals) > 0 {
				sum += pickOrDefault(vals, pol)
			}
			continue
		}
		lexeme := leaf.Form
		if utf8.RuneCountInString(lexeme) < 2 {
			lexeme = leaf.Surface
		}
		if utf8.RuneCountInString(lexeme) < 2 {
			continue
		}
		sum += s.resolve(ctx, lexeme, c.Label(), pol)
	}
	return sum
}

func (s *Scorer) resolve(ctx context.Context, lexeme, posHint string, pol lexicon.Polarity) float64 {
	if s.resolver == nil {
		return 0
	}
	v, err := s.resolver.Resolve(ctx, lexeme, posHint, pol)
	if err != nil {
		s.logger.Warn("lexeme resolution failed, contributing zero",
			zap.String("lexeme", lexeme),
			zap.String("polarity", pol.String()),
			zap.Error(err),
		)
		return 0
	}
	return v
}

func pickOrDefault(vals []float64, pol lexicon.Polarity) float64 {
	if v, ok := lexicon.SelectContextual(vals, pol); ok {
		return v
	}
	return vals[0]
}

func leafCategory(t morph.Tag) (lexicon.Category, bool) {
	switch t {
	case morph.Adjective:
		return lexicon.Adjective, true
	case morph.Adverb:
		return lexicon.Adverb, true
	case morph.Noun:
		return lexicon.Noun, true
	default:
		return 0, false
	}
}

func baseline(p lexicon.Polarity) float64 {
	switch p {
	case lexicon.Positive:
		return baselineScore
	case lexicon.Negative:
		return -baselineScore
	default:
		return 0
	}
}
