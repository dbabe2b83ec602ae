package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	hints []lexicon.Polarity
	score float64
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, lexeme, _ string, hint lexicon.Polarity) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lexeme)
	f.hints = append(f.hints, hint)
	return f.score, f.err
}

func testStore() *lexicon.Store {
	return lexicon.NewMemory(nil,
		lexicon.Entry{Phrase: "정말", Category: lexicon.Amplifier, Values: []float64{1.5}},
		lexicon.Entry{Phrase: "조금", Category: lexicon.Downtoner, Values: []float64{0.5}},
		lexicon.Entry{Phrase: "안", Category: lexicon.Negator},
		lexicon.Entry{Phrase: "좋아요", Category: lexicon.Adjective, Values: []float64{1.0}},
		lexicon.Entry{Phrase: "좋다", Category: lexicon.Adjective, Values: []float64{1.0}},
		lexicon.Entry{Phrase: "괜찮다", Category: lexicon.Adjective, Values: []float64{0.5}},
		lexicon.Entry{Phrase: "별로", Category: lexicon.Adverb, Values: []float64{-0.8}},
		lexicon.Entry{Phrase: "최고", Category: lexicon.Noun, Values: []float64{1.8}},
		lexicon.Entry{Phrase: "가성비 갑", Category: lexicon.Idiom, Values: []float64{-0.5, 1.2, 0.8}},
		lexicon.Entry{Phrase: "뒤통수", Category: lexicon.Idiom, Values: []float64{-1.5}},
	)
}

func TestScoreSentence_AmplifierMultipliesTarget(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	got := s.ScoreSentence(context.Background(), "****정말****(수식어구: 좋아요) ****좋아요****", true, false)
	assert.Equal(t, 1.5, got)
}

func TestScoreSentence_DowntonerAndNegator(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	ctx := context.Background()

	assert.Equal(t, 0.5, s.ScoreSentence(ctx, "- ****조금****(수식어구: 좋다) ****좋다****", true, false))
	assert.Equal(t, -1.0, s.ScoreSentence(ctx, "- ****안****(수식어구: 좋다) ****좋다****", false, true))
	assert.Equal(t, -1.5, s.ScoreSentence(ctx, "****안****(modifies: 좋다) ****정말****(modifies: 좋다) ****좋다****", false, true))
}

func TestScoreSentence_BaselineOnlyWhenNothingContributed(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	ctx := context.Background()

	assert.Equal(t, 0.3, s.ScoreSentence(ctx, "무난한 하루였다", true, false))
	assert.Equal(t, -0.3, s.ScoreSentence(ctx, "무난한 하루였다", false, true))
	assert.Equal(t, 0.0, s.ScoreSentence(ctx, "무난한 하루였다", false, false))
	assert.Equal(t, 1.8, s.ScoreSentence(ctx, "****최고****", true, false))
}

func TestScoreSentence_BucketsAreNotNetted(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	tr := s.ScoreDetailed(context.Background(), "****최고****인데 주차는 ****별로****", false, false)

	assert.Equal(t, 1.8, tr.Positive)
	assert.Equal(t, -0.8, tr.Negative)
	assert.InDelta(t, 1.0, tr.Score, 1e-9)
	require.Len(t, tr.Spans, 2)
}

func TestScoreSentence_IdiomContextualSelection(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	ctx := context.Background()
	const line = "****가성비 갑****"

	assert.Equal(t, 1.2, s.ScoreSentence(ctx, line, true, false))
	assert.Equal(t, -0.5, s.ScoreSentence(ctx, line, false, true))
	assert.Equal(t, -0.5, s.ScoreSentence(ctx, line, false, false))
}

func TestScoreSentence_IdiomMismatchAsksResolver(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{score: 0.7}
	s := NewScorer(testStore(), r, nil)

	got := s.ScoreSentence(context.Background(), "****뒤통수****", true, false)
	assert.Equal(t, 0.7, got)
	assert.Equal(t, []string{"뒤통수"}, r.calls)
	assert.Equal(t, []lexicon.Polarity{lexicon.Positive}, r.hints)
}

func TestScoreSentence_KnownMismatchUsesDefault(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{score: -1}
	s := NewScorer(testStore(), r, nil)

	got := s.ScoreSentence(context.Background(), "****괜찮다****", false, true)
	assert.Equal(t, 0.5, got)
	assert.Empty(t, r.calls)
}

func TestScoreSentence_UnknownLeafIsResolved(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{score: 1.3}
	s := NewScorer(testStore(), r, nil)

	got := s.ScoreSentence(context.Background(), "****꿀잼****", true, false)
	assert.Equal(t, 1.3, got)
	assert.Equal(t, []string{"꿀잼"}, r.calls)
}

func TestScoreSentence_ShortUnknownSpanIgnored(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{score: 1}
	s := NewScorer(testStore(), r, nil)

	got := s.ScoreSentence(context.Background(), "****굿****", true, false)
	assert.Equal(t, 0.3, got)
	assert.Empty(t, r.calls)
}

func TestScoreSentence_ResolverErrorContributesZero(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{err: errors.New("quota")}
	s := NewScorer(testStore(), r, nil)

	got := s.ScoreSentence(context.Background(), "****꿀잼****이고 ****최고****", true, false)
	assert.Equal(t, 1.8, got)
	assert.Len(t, r.calls, 1)
}

func TestScoreSentence_Deterministic(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	ctx := context.Background()
	const line = "****정말****(수식어구: 좋아요) ****좋아요**** 그리고 ****가성비 갑**** 하지만 ****별로****"

	first := s.ScoreDetailed(ctx, line, true, false)
	for range 10 {
		assert.Equal(t, first, s.ScoreDetailed(ctx, line, true, false))
	}
}

func TestScoreSentence_ContentSpanWithTargetIsHeld(t *testing.T) {
	t.Parallel()

	s := NewScorer(testStore(), nil, nil)
	tr := s.ScoreDetailed(context.Background(), "****최고****(수식어구: 좋다) ****안****(수식어구: 좋다)", false, false)

	require.Len(t, tr.Spans, 2)
	assert.Equal(t, "좋다", tr.Spans[0].Key)
	assert.True(t, tr.Spans[1].Applied)
	assert.Equal(t, -1.8, tr.Score)
}

func TestParseSpans(t *testing.T) {
	t.Parallel()

	got := ParseSpans("- 음식이 ****정말****(수식어구: 환상적) ****환상적****이었다. ****가성비 갑****")
	assert.Equal(t, []Span{
		{Text: "정말", Target: "환상적"},
		{Text: "환상적"},
		{Text: "가성비 갑"},
	}, got)

	assert.Empty(t, ParseSpans("표시 없는 문장"))
	assert.Equal(t, "음식이 정말 환상적이었다.", PlainText("음식이 ****정말****(수식어구: 환상적) ****환상적****이었다."))
}
