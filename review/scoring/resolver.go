package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review/fileutils"
	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
	"github.com/theimaginaryfoundation/review-sentiment/review/provider"
)

// ErrMalformedResponse is returned when the oracle answer is not a category,phrase,score triple.
var ErrMalformedResponse = errors.New("malformed resolver response")

const (
	scoreLimit     = 2.0
	nuanceFallback = 0.3
	promptExamples = 5
)

// Resolution is one parsed oracle answer. Category 0 means nothing new to learn.
type Resolution struct {
	Category lexicon.Category
	Phrase   string
	Score    float64
}

// IsNone reports the "nothing new" sentinel: category 0 paired with the 없음 phrase.
func (r Resolution) IsNone() bool {
	return r.Category == 0 && isSentinel(r.Phrase)
}

func isSentinel(phrase string) bool {
	p := strings.TrimSpace(phrase)
	return p == "" || p == "없음" || strings.EqualFold(p, "none")
}

// ParseResolution accepts exactly three comma-separated fields with a numeric score.
func ParseResolution(answer string) (Resolution, error) {
	s := strings.TrimSpace(answer)
	s = strings.Trim(s, "`\"'")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Resolution{}, fmt.Errorf("%w: %d fields", ErrMalformedResponse, len(parts))
	}
	catStr := strings.TrimSpace(parts[0])
	score, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: score %q", ErrMalformedResponse, strings.TrimSpace(parts[2]))
	}
	phrase := lexicon.NormalizePhrase(parts[1])
	if catStr == "0" {
		return Resolution{Phrase: phrase, Score: score}, nil
	}
	n, err := strconv.Atoi(catStr)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: category %q", ErrMalformedResponse, catStr)
	}
	cat, ok := lexicon.ParseCategory(strconv.Itoa(n))
	if !ok {
		return Resolution{}, fmt.Errorf("%w: category %q", ErrMalformedResponse, catStr)
	}
	return Resolution{Category: cat, Phrase: phrase, Score: score}, nil
}

// Resolver scores lexemes the lexicon does not know by asking the oracle, learning what it answers.
type Resolver struct {
	oracle provider.Oracle
	store  *lexicon.Store
	logger *zap.Logger
}

func NewResolver(oracle provider.Oracle, store *lexicon.Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{oracle: oracle, store: store, logger: logger}
}

// Resolve returns the direct score contribution of lexeme. Lexical answers are clamped to
// [-2, 2], learned and returned. Amplifier and downtoner answers are learned as multipliers and
// contribute 0. Negators are not learned. The sentinel contributes ±0.3 when the oracle still
// reports nuance.
func (r *Resolver) Resolve(ctx context.Context, lexeme, posHint string, hint lexicon.Polarity) (float64, error) {
	if r.oracle == nil {
		return 0, &provider.OracleError{Provider: "none", Err: errors.New("no oracle configured")}
	}
	answer, err := r.oracle.Complete(ctx, r.prompt(lexeme, posHint, hint))
	if err != nil {
		var oe *provider.OracleError
		if !errors.As(err, &oe) {
			err = &provider.OracleError{Provider: "resolver", Err: err}
		}
		return 0, err
	}

	res, err := ParseResolution(answer)
	if err != nil {
		r.logger.Debug("resolver answer rejected",
			zap.String("lexeme", lexeme),
			zap.String("answer", fileutils.Preview(answer, 120)),
			zap.Error(err),
		)
		return 0, err
	}

	if res.IsNone() {
		if res.Score == 0 {
			return 0, nil
		}
		switch hint {
		case lexicon.Positive:
			return nuanceFallback, nil
		case lexicon.Negative:
			return -nuanceFallback, nil
		}
		if res.Score > 0 {
			return nuanceFallback, nil
		}
		return -nuanceFallback, nil
	}
	// Only the full sentinel pair scores; either half alone contributes nothing and is not learned.
	if res.Category == 0 || isSentinel(res.Phrase) {
		return 0, nil
	}

	switch res.Category {
	case lexicon.Amplifier, lexicon.Downtoner:
		if res.Score > 0 {
			r.learn(res.Category, res.Phrase, res.Score)
		}
		return 0, nil
	case lexicon.Negator:
		return 0, nil
	default:
		score := clamp(res.Score, -scoreLimit, scoreLimit)
		r.learn(res.Category, res.Phrase, score)
		return score, nil
	}
}

func (r *Resolver) learn(c lexicon.Category, phrase string, v float64) {
	if r.store == nil {
		return
	}
	if err := r.store.Learn(c, phrase, v); err != nil {
		r.logger.Warn("lexicon learn failed",
			zap.String("category", c.String()),
			zap.String("phrase", phrase),
			zap.Error(err),
		)
	}
}

func (r *Resolver) prompt(lexeme, posHint string, hint lexicon.Polarity) string {
	var b strings.Builder
	b.WriteString("당신은 한국어 신조어, 관용어, 감성 형용사/부사/명사에 능숙한 감성 분석 전문가입니다. 사전에 없는 표현의 감성 점수를 추론해야 합니다.\n\n")
	b.WriteString("[현재 감성 사전 예시]\n")
	for _, c := range lexicon.Categories {
		fmt.Fprintf(&b, "%d. %s: %s\n", int(c), c.Label(), formatExamples(r.store, c))
	}
	b.WriteString("\n[점수 기준]\n")
	b.WriteString("- 1, 5, 6, 7번 카테고리는 -2.0(매우 부정) ~ 2.0(매우 긍정) 사이의 감성 점수를 주세요.\n")
	b.WriteString("- 2번(강조어)과 3번(완화어)은 0보다 큰 점수 배율을 주세요. (예: 강조어 1.5, 완화어 0.5)\n\n")
	fmt.Fprintf(&b, "분석할 표현: \"%s\"\n", lexeme)
	if posHint != "" {
		fmt.Fprintf(&b, "형태소 분석 품사: %s\n", posHint)
	}
	fmt.Fprintf(&b, "문맥: %s\n", hint.Label())
	switch hint {
	case lexicon.Positive:
		b.WriteString("[매우 중요] 긍정 문맥이므로 감성 점수는 반드시 양수여야 합니다.\n")
	case lexicon.Negative:
		b.WriteString("[매우 중요] 부정 문맥이므로 감성 점수는 반드시 음수여야 합니다.\n")
	}
	b.WriteString("\n[지시사항]\n")
	b.WriteString("1. 재사용 가능한 핵심 감성 표현을 하나만 고르고 1~7 중 카테고리를 정하세요.\n")
	b.WriteString("2. 새로 배울 표현이 없다면 '0,없음,점수' 형식으로 답하세요. 뉘앙스가 있다면 0.3 또는 -0.3을 주세요.\n\n")
	b.WriteString("[답변 형식]\n'카테고리 번호,핵심 감성 표현,점수' 한 줄로만 답하세요.\n")
	b.WriteString("- 예시: 7,꽉찬,1.2\n- 예시: 2,훨씬,1.4\n- 예시: 0,없음,0.3\n")
	return b.String()
}

func formatExamples(store *lexicon.Store, c lexicon.Category) string {
	if store == nil {
		return "(없음)"
	}
	ex := store.Examples(c, promptExamples)
	if len(ex) == 0 {
		return "(없음)"
	}
	parts := make([]string, 0, len(ex))
	for _, e := range ex {
		if len(e.Values) == 0 {
			parts = append(parts, e.Phrase)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", e.Phrase, strconv.FormatFloat(e.Values[0], 'f', -1, 64)))
	}
	return strings.Join(parts, ", ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
