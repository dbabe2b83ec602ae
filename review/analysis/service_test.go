package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theimaginaryfoundation/review-sentiment/review"
	"github.com/theimaginaryfoundation/review-sentiment/review/cache"
	"github.com/theimaginaryfoundation/review-sentiment/review/pipeline"
	"github.com/theimaginaryfoundation/review-sentiment/review/provider"
)

type fakeRunner struct {
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	delay    time.Duration
	states   map[string]pipeline.State
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input) pipeline.State {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	st, ok := f.states[in.Title]
	if !ok {
		return pipeline.State{Subject: in.Subject, Title: in.Title, Stage: pipeline.StageDone}
	}
	st.Subject, st.Title, st.Stage = in.Subject, in.Title, pipeline.StageDone
	return st
}

func relevant(scores ...float64) pipeline.State {
	js := make([]review.SentenceJudgment, 0, len(scores))
	for i, s := range scores {
		js = append(js, review.NewJudgment(strings.Repeat("문장", i+2), s))
	}
	return pipeline.State{IsRelevant: true, Judgments: js}
}

type recordingOracle struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (o *recordingOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, prompt)
	return o.answer, o.err
}

// genai links opencensus, whose view worker starts in init.
var ignoreOpenCensus = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

func fixedNow() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

func TestAnalyzeSubject_PooledAndMeanIndex(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{states: map[string]pipeline.State{
		"flat":  relevant(0.05),
		"polar": relevant(1.5, 1.2, 1.0, -1.5),
	}}
	svc := NewService(runner, Options{Concurrency: 2, Now: fixedNow})

	r, err := svc.AnalyzeSubject(context.Background(), "커피축제", []review.Document{
		{Title: "flat", PostDate: "20240415"},
		{Title: "polar", PostDate: "20241020"},
	}, 10)
	require.NoError(t, err)

	assert.Equal(t, 75.0, r.SentimentIndex)
	assert.Equal(t, 62.5, r.MeanMemberIndex)
	assert.Equal(t, 2, r.DocumentsAnalyzed)
	assert.Equal(t, 10, r.SampleSize)
	assert.Equal(t, 1, r.Seasons[review.Spring].Documents)
	assert.Equal(t, 1, r.Seasons[review.Fall].Documents)
	assert.Equal(t, fixedNow(), r.GeneratedAt)
	assert.Empty(t, r.NegativeSummary, "no oracle configured")
}

func TestAnalyzeSubject_SkipsIrrelevantAndStopsAtSampleSize(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{states: map[string]pipeline.State{
		"b": relevant(1.2),
		"c": {IsRelevant: true},
		"d": relevant(-1.2),
		"e": relevant(0.5),
		"f": relevant(0.7),
	}}
	svc := NewService(runner, Options{Concurrency: 1})

	docs := []review.Document{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"}, {Title: "f"}}
	r, err := svc.AnalyzeSubject(context.Background(), "s", docs, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, r.DocumentsAnalyzed)
	require.Len(t, r.Members, 2)
	assert.Equal(t, "b", r.Members[0].Name)
	assert.Equal(t, "d", r.Members[1].Name)
	assert.Equal(t, 4, r.DocumentsConsidered)
	assert.Equal(t, int64(4), runner.calls.Load())
}

func TestAnalyzeSubject_SingleSampleRunsOneDocument(t *testing.T) {
	t.Parallel()

	states := map[string]pipeline.State{}
	docs := make([]review.Document, 0, 5)
	for i := range 5 {
		title := string(rune('a' + i))
		states[title] = relevant(0.8)
		docs = append(docs, review.Document{Title: title})
	}
	runner := &fakeRunner{states: states}
	r, err := NewService(runner, Options{Concurrency: 1}).AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), runner.calls.Load())
	assert.Equal(t, 1, r.DocumentsConsidered)
	assert.Equal(t, 1, r.DocumentsAnalyzed)
}

func TestAnalyzeSubject_RespectsConcurrencyLimit(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	states := map[string]pipeline.State{}
	docs := make([]review.Document, 0, 12)
	for i := range 12 {
		title := string(rune('a' + i))
		states[title] = relevant(0.5)
		docs = append(docs, review.Document{Title: title})
	}
	runner := &fakeRunner{states: states, delay: 5 * time.Millisecond}
	svc := NewService(runner, Options{Concurrency: 3})

	r, err := svc.AnalyzeSubject(context.Background(), "s", docs, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, r.DocumentsAnalyzed)
	assert.LessOrEqual(t, runner.maxSeen.Load(), int64(3))
}

func TestAnalyzeSubject_UsesCache(t *testing.T) {
	t.Parallel()

	fs, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	runner := &fakeRunner{states: map[string]pipeline.State{"a": relevant(1.5)}}
	svc := NewService(runner, Options{Cache: cache.New(fs)})
	docs := []review.Document{{Title: "a"}}

	first, err := svc.AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)
	second, err := svc.AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), runner.calls.Load())
	assert.Equal(t, first.SentimentIndex, second.SentimentIndex)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
}

func TestAnalyzeSubject_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	_, err := NewService(runner, Options{}).AnalyzeSubject(ctx, "s", []review.Document{{Title: "a"}}, 1)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, runner.calls.Load())
}

func TestAnalyzeSubject_NegativeSummary(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{states: map[string]pipeline.State{
		"a": {IsRelevant: true, Judgments: []review.SentenceJudgment{
			review.NewJudgment("주차 공간이 부족했다", -1.2),
			review.NewJudgment("화장실이 더러웠다", -0.6),
			review.NewJudgment("커피는 맛있었다", 1.1),
		}},
		"b": relevant(1.4),
	}}

	oracle := &recordingOracle{answer: "1. 주차 공간 부족\n2. 위생 문제\n"}
	r, err := NewService(runner, Options{Oracle: oracle}).AnalyzeSubject(context.Background(), "s", []review.Document{{Title: "a"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, "1. 주차 공간 부족\n2. 위생 문제", r.NegativeSummary)
	require.Len(t, oracle.prompts, 2)
	assert.Contains(t, oracle.prompts[0], "- 주차 공간이 부족했다\n- 화장실이 더러웠다")
	assert.NotContains(t, oracle.prompts[0], "커피는 맛있었다")

	quiet := &recordingOracle{answer: "unused"}
	r, err = NewService(runner, Options{Oracle: quiet}).AnalyzeSubject(context.Background(), "s", []review.Document{{Title: "b"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, noComplaints, r.NegativeSummary)
	for _, p := range quiet.prompts {
		assert.NotContains(t, p, "[수집된 부정적인 의견]")
	}

	broken := &recordingOracle{err: &provider.OracleError{Provider: "test", Err: errors.New("down")}}
	r, err = NewService(runner, Options{Oracle: broken}).AnalyzeSubject(context.Background(), "s", []review.Document{{Title: "a"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, negativeSummaryFailure, r.NegativeSummary)
}

func TestAnalyzeCategory_RollupIsolatesFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{states: map[string]pipeline.State{
		"big-1":   relevant(1.5, 1.2, 1.1),
		"big-2":   relevant(1.5, 1.2, 1.1),
		"big-3":   relevant(1.5, 1.2, 1.1),
		"small-1": relevant(-1.5),
	}}
	svc := NewService(runner, Options{Now: fixedNow})

	docs := func(titles ...string) func() ([]review.Document, error) {
		return func() ([]review.Document, error) {
			out := make([]review.Document, 0, len(titles))
			for _, title := range titles {
				out = append(out, review.Document{Title: title, PostDate: "20240705"})
			}
			return out, nil
		}
	}
	report, err := svc.AnalyzeCategory(context.Background(), "축제", []Subject{
		{Name: "small", Load: docs("small-1")},
		{Name: "broken", Load: func() ([]review.Document, error) { return nil, errors.New("no such file") }},
		{Name: "big", Load: docs("big-1", "big-2", "big-3")},
	}, 0)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].Subject)
	assert.Len(t, report.Subjects, 2)

	r := report.Result
	assert.Equal(t, review.KindCategory, r.Kind)
	assert.Equal(t, 90.0, r.SentimentIndex)
	assert.Equal(t, 50.0, r.MeanMemberIndex)
	assert.Equal(t, 4, r.DocumentsAnalyzed)
	assert.Equal(t, 4, r.Seasons[review.Summer].Documents)
	require.Len(t, r.Members, 2)
	assert.Equal(t, "big", r.Members[0].Name)
}

func TestAnalyzeSubject_Interpretation(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{states: map[string]pipeline.State{
		"a": relevant(1.5, 1.2, -0.6, 0.4),
	}}
	docs := []review.Document{{Title: "a"}}

	oracle := &recordingOracle{answer: "  긍정적인 평가가 우세합니다.  "}
	r, err := NewService(runner, Options{Oracle: oracle}).AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)
	assert.Equal(t, "긍정적인 평가가 우세합니다.", r.Interpretation)

	require.Len(t, oracle.prompts, 2)
	prompt := oracle.prompts[1]
	for _, want := range []string{
		"**전체 리뷰 문장 수**: 4개",
		"- 긍정 문장: 3개 (75.0%)",
		"- 부정 문장: 1개 (25.0%)",
		"- 매우 불만족: ",
		"- 매우 만족: ",
		"- 최소 점수: -0.60",
		"- 최대 점수: 1.50",
		"- 중간값: 0.80",
		"- 이상치 개수: 0개 (전체의 0.0%)",
		fewOutliers,
	} {
		assert.Contains(t, prompt, want)
	}
	assert.Contains(t, prompt, fmt.Sprintf("- 평균 만족도: %.2f / 5.0", r.Satisfaction.Average))

	broken := &recordingOracle{err: &provider.OracleError{Provider: "test", Err: errors.New("down")}}
	r, err = NewService(runner, Options{Oracle: broken}).AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("평균 만족도는 %.2f / 5.0점입니다. 긍정 비율은 75.0%%입니다.", r.Satisfaction.Average), r.Interpretation)

	r, err = NewService(runner, Options{}).AnalyzeSubject(context.Background(), "s", docs, 1)
	require.NoError(t, err)
	assert.Empty(t, r.Interpretation)
}
