package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/review-sentiment/review"
	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
	"github.com/theimaginaryfoundation/review-sentiment/review/scoring"
)

type scriptedOracle struct {
	mu sync.Mutex

	validateAnswer string
	validateErr    error
	summaries      []string
	summarizeErr   error

	validateCalls    int
	summarizePrompts []string
}

func (o *scriptedOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case strings.HasPrefix(prompt, "[관련성 판별]"):
		o.validateCalls++
		return o.validateAnswer, o.validateErr
	case strings.HasPrefix(prompt, "[리뷰 요약]"):
		o.summarizePrompts = append(o.summarizePrompts, prompt)
		if o.summarizeErr != nil {
			return "", o.summarizeErr
		}
		i := len(o.summarizePrompts) - 1
		if i >= len(o.summaries) {
			i = len(o.summaries) - 1
		}
		return o.summaries[i], nil
	default:
		return "", errors.New("unexpected prompt")
	}
}

type countingScorer struct {
	mu    sync.Mutex
	calls int
	score func(sentence string) float64
}

func (s *countingScorer) ScoreSentence(_ context.Context, sentence string, _, _ bool) float64 {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.score(sentence)
}

func TestNext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		stage Stage
		st    State
		want  Stage
	}{
		{"relevant", StageValidate, State{IsRelevant: true}, StageSummarize},
		{"irrelevant", StageValidate, State{}, StageDone},
		{"summarize", StageSummarize, State{}, StageScore},
		{"consistent", StageScore, State{RetryCount: 1}, StageDone},
		{"feedback", StageScore, State{FeedbackMessage: "x", RetryCount: 2}, StageSummarize},
		{"budget spent", StageScore, State{FeedbackMessage: "x", RetryCount: 3}, StageDone},
		{"done", StageDone, State{FeedbackMessage: "x"}, StageDone},
	}
	for _, tc := range cases {
		if got := Next(tc.stage, tc.st); got != tc.want {
			t.Fatalf("%s: Next=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRun_IrrelevantDocumentShortCircuits(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{validateAnswer: "아니오"}
	scorer := &countingScorer{score: func(string) float64 { return 1 }}
	p := New(oracle, scorer, nil, nil)

	st := p.Run(context.Background(), Input{
		Subject: "커피축제",
		Title:   "세계 커피축제 다녀왔어요",
		Text:    "올해 세계 커피축제는 코엑스에서 열렸다.",
	})

	if st.IsRelevant {
		t.Fatalf("IsRelevant=true, want false")
	}
	if len(st.Judgments) != 0 {
		t.Fatalf("judgments=%d, want 0", len(st.Judgments))
	}
	if st.Stage != StageDone {
		t.Fatalf("stage=%v, want done", st.Stage)
	}
	if len(oracle.summarizePrompts) != 0 || scorer.calls != 0 {
		t.Fatalf("summarize=%d score=%d, want no calls", len(oracle.summarizePrompts), scorer.calls)
	}
	if st.Calls != (Calls{Validate: 1}) {
		t.Fatalf("calls=%+v", st.Calls)
	}
	if st.RunID == "" {
		t.Fatalf("RunID is empty")
	}
}

func TestRun_ScoresSectionsWithLexicon(t *testing.T) {
	t.Parallel()

	store := lexicon.NewMemory(nil,
		lexicon.Entry{Phrase: "정말", Category: lexicon.Amplifier, Values: []float64{1.5}},
		lexicon.Entry{Phrase: "좋다", Category: lexicon.Adjective, Values: []float64{1.0}},
		lexicon.Entry{Phrase: "별로", Category: lexicon.Adverb, Values: []float64{-0.8}},
	)
	oracle := &scriptedOracle{
		validateAnswer: "예",
		summaries: []string{
			"- 긍정적인 점:\n- 분위기가 ****정말****(수식어구: 좋다) ****좋다****\n\n- 부정적인 점:\n- 주차는 ****별로****였다\n- 사람이 많았다",
		},
	}
	p := New(oracle, scoring.NewScorer(store, nil, nil), store, nil)

	st := p.Run(context.Background(), Input{Subject: "커피축제", Title: "후기", Text: "본문"})

	want := []review.SentenceJudgment{
		{Sentence: "분위기가 정말 좋다", Score: 1.5, Verdict: review.Positive},
		{Sentence: "주차는 별로였다", Score: -0.8, Verdict: review.Negative},
		{Sentence: "사람이 많았다", Score: -0.3, Verdict: review.Negative},
	}
	if len(st.Judgments) != len(want) {
		t.Fatalf("judgments=%+v, want %d", st.Judgments, len(want))
	}
	for i := range want {
		if st.Judgments[i] != want[i] {
			t.Fatalf("judgment[%d]=%+v, want %+v", i, st.Judgments[i], want[i])
		}
	}
	if st.RetryCount != 0 || st.FeedbackMessage != "" {
		t.Fatalf("retry=%d feedback=%q, want none", st.RetryCount, st.FeedbackMessage)
	}
	if !strings.Contains(oracle.summarizePrompts[0], "강조어: 정말") {
		t.Fatalf("summarizer prompt lacks lexicon reference")
	}
}

func TestResume_RetryCapKeepsInconsistentJudgment(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{}
	scorer := &countingScorer{score: func(string) float64 { return -0.4 }}
	p := New(oracle, scorer, nil, nil)

	st := p.Resume(context.Background(), State{
		Subject:    "커피축제",
		Stage:      StageScore,
		IsRelevant: true,
		RetryCount: 2,
		Summary:    "- 긍정적인 점:\n- 직원이 ****불친절****했다",
	})

	if st.Stage != StageDone {
		t.Fatalf("stage=%v, want done", st.Stage)
	}
	if st.RetryCount != 3 {
		t.Fatalf("RetryCount=%d, want 3", st.RetryCount)
	}
	if !st.ConsistencyExceeded {
		t.Fatalf("ConsistencyExceeded=false, want true")
	}
	if scorer.calls != 2 {
		t.Fatalf("scorer calls=%d, want 2 (score + rescore)", scorer.calls)
	}
	if len(oracle.summarizePrompts) != 0 {
		t.Fatalf("summarizer called %d times, want 0", len(oracle.summarizePrompts))
	}
	if len(st.Judgments) != 1 || st.Judgments[0].Score != -0.4 {
		t.Fatalf("judgments=%+v, want the inconsistent -0.4 line", st.Judgments)
	}
}

func TestRun_FeedbackReachesSummarizer(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{
		validateAnswer: "예, 관련 있습니다.",
		summaries: []string{
			"- 긍정적인 점:\n- 직원이 ****불친절****했다",
			"- 긍정적인 점:\n- 커피가 ****맛있다****",
		},
	}
	scorer := &countingScorer{score: func(s string) float64 {
		if strings.Contains(s, "불친절") {
			return -0.4
		}
		return 1.0
	}}
	p := New(oracle, scorer, nil, nil)

	st := p.Run(context.Background(), Input{Subject: "커피축제", Title: "후기", Text: "본문"})

	if len(oracle.summarizePrompts) != 2 {
		t.Fatalf("summarize calls=%d, want 2", len(oracle.summarizePrompts))
	}
	second := oracle.summarizePrompts[1]
	for _, want := range []string{"[이전 요약에 대한 피드백]", "'직원이 불친절했다' 문장은 긍정 문맥", "-0.40"} {
		if !strings.Contains(second, want) {
			t.Fatalf("second prompt missing %q", want)
		}
	}
	if st.RetryCount != 1 || st.ConsistencyExceeded {
		t.Fatalf("retry=%d exceeded=%v, want 1 false", st.RetryCount, st.ConsistencyExceeded)
	}
	if len(st.Judgments) != 1 || st.Judgments[0].Verdict != review.Positive {
		t.Fatalf("judgments=%+v", st.Judgments)
	}
}

func TestRun_PersistentInconsistencyStopsAtCap(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{
		validateAnswer: "yes",
		summaries:      []string{"부정적인 점:\n- 너무 ****재밌다****"},
	}
	scorer := &countingScorer{score: func(string) float64 { return 0.9 }}
	p := New(oracle, scorer, nil, nil)

	st := p.Run(context.Background(), Input{Subject: "s", Text: "t"})

	if got := st.Calls; got != (Calls{Validate: 1, Summarize: 3, Score: 3}) {
		t.Fatalf("calls=%+v", got)
	}
	if st.RetryCount != MaxRetries || !st.ConsistencyExceeded {
		t.Fatalf("retry=%d exceeded=%v", st.RetryCount, st.ConsistencyExceeded)
	}
}

func TestRun_OracleErrorsDegrade(t *testing.T) {
	t.Parallel()

	down := errors.New("503 unavailable")

	st := New(&scriptedOracle{validateErr: down}, &countingScorer{score: func(string) float64 { return 0 }}, nil, nil).
		Run(context.Background(), Input{Subject: "s", Text: "t"})
	if st.IsRelevant || st.Stage != StageDone {
		t.Fatalf("validator error: relevant=%v stage=%v", st.IsRelevant, st.Stage)
	}

	scorer := &countingScorer{score: func(string) float64 { return 1 }}
	st = New(&scriptedOracle{validateAnswer: "예", summarizeErr: down}, scorer, nil, nil).
		Run(context.Background(), Input{Subject: "s", Text: "t"})
	if !st.IsRelevant || st.Summary != "" || len(st.Judgments) != 0 || scorer.calls != 0 {
		t.Fatalf("summarizer error: %+v calls=%d", st, scorer.calls)
	}
}

func TestRun_TruncatesLongText(t *testing.T) {
	t.Parallel()

	oracle := &scriptedOracle{validateAnswer: "아니요"}
	p := New(oracle, &countingScorer{score: func(string) float64 { return 0 }}, nil, nil)

	st := p.Run(context.Background(), Input{Subject: "s", Text: strings.Repeat("가", MaxTextRunes+500)})
	if !strings.HasSuffix(st.Document, truncatedSuffix) {
		t.Fatalf("document not marked as truncated")
	}
	if got := utf8.RuneCountInString(strings.TrimSuffix(st.Document, truncatedSuffix)); got != MaxTextRunes {
		t.Fatalf("kept %d runes, want %d", got, MaxTextRunes)
	}
}

func TestParseYesNo(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"예":                  true,
		"예, 관련 있습니다":          true,
		"네 맞습니다":              true,
		"Yes.":               true,
		"**예**":              true,
		`"네" 관련 있습니다`:        true,
		"아니오":                 false,
		"아니요, 다른 축제":          false,
		"No":                  false,
		"모르겠습니다":              false,
		"예상과 달리 관련 없는 글입니다":   false,
		"네이버 블로그 광고입니다":       false,
		"Nothing to do with it": false,
	}
	for in, want := range cases {
		if got := parseYesNo(in); got != want {
			t.Fatalf("parseYesNo(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestHeaderPolarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		pol  lexicon.Polarity
		ok   bool
	}{
		{"- 긍정적인 점:", lexicon.Positive, true},
		{"**부정적인 점**", lexicon.Negative, true},
		{"본문에 언급된 부정적인 점은 다음과 같습니다:", lexicon.Negative, true},
		{"### Positive points", lexicon.Positive, true},
		{"- ****부정적인 점****이 많다", lexicon.Neutral, false},
		{"- 커피가 맛있다", lexicon.Neutral, false},
		{"[본문에 언급된 부정적인 점]", lexicon.Negative, true},
	}
	for _, tc := range cases {
		pol, ok := HeaderPolarity(tc.line)
		if pol != tc.pol || ok != tc.ok {
			t.Fatalf("HeaderPolarity(%q)=%v,%v want %v,%v", tc.line, pol, ok, tc.pol, tc.ok)
		}
	}
}

func TestStage_TextRoundTrip(t *testing.T) {
	t.Parallel()

	for s := StageValidate; s <= StageDone; s++ {
		b, _ := s.MarshalText()
		var got Stage
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Fatalf("round trip %v: got %v err %v", s, got, err)
		}
	}
}
