// Package review holds the data model shared by the scoring pipeline, the aggregation layer and
// the cache, together with the pure statistics over it.
package review

import "time"

// Verdict is the polarity class of one scored sentence.
type Verdict string

const (
	Positive Verdict = "positive"
	Negative Verdict = "negative"
	Neutral  Verdict = "neutral"
)

// Label is the Korean display name.
func (v Verdict) Label() string {
	switch v {
	case Positive:
		return "긍정"
	case Negative:
		return "부정"
	default:
		return "중립"
	}
}

const (
	verdictThreshold = 0.1
	strongThreshold  = 1.0
)

// VerdictFor classifies a sentence score: above 0.1 is positive, below -0.1 negative.
func VerdictFor(score float64) Verdict {
	switch {
	case score > verdictThreshold:
		return Positive
	case score < -verdictThreshold:
		return Negative
	default:
		return Neutral
	}
}

// SentenceJudgment is one scored summary line. SatisfactionLevel is 0 until the aggregate's
// boundaries are known, then 1..5.
type SentenceJudgment struct {
	Sentence          string  `json:"sentence"`
	Score             float64 `json:"score"`
	Verdict           Verdict `json:"verdict"`
	SatisfactionLevel int     `json:"satisfaction_level,omitempty"`
}

func NewJudgment(sentence string, score float64) SentenceJudgment {
	return SentenceJudgment{Sentence: sentence, Score: score, Verdict: VerdictFor(score)}
}

// IsStrong reports whether the judgment counts toward the weighted index: positive with a score of
// at least 1.0, or negative below -1.0.
func (j SentenceJudgment) IsStrong() bool {
	switch j.Verdict {
	case Positive:
		return j.Score >= strongThreshold
	case Negative:
		return j.Score < -strongThreshold
	default:
		return false
	}
}

// Totals counts polar sentences.
type Totals struct {
	Positive       int `json:"positive"`
	Negative       int `json:"negative"`
	StrongPositive int `json:"strong_positive"`
	StrongNegative int `json:"strong_negative"`
}

// Frequency is the number of polar sentences.
func (t Totals) Frequency() int { return t.Positive + t.Negative }

func (t Totals) Add(o Totals) Totals {
	return Totals{
		Positive:       t.Positive + o.Positive,
		Negative:       t.Negative + o.Negative,
		StrongPositive: t.StrongPositive + o.StrongPositive,
		StrongNegative: t.StrongNegative + o.StrongNegative,
	}
}

// Percentages returns the positive and negative shares of Frequency, 0 when there are none.
func (t Totals) Percentages() (pos, neg float64) {
	f := t.Frequency()
	if f == 0 {
		return 0, 0
	}
	return float64(t.Positive) / float64(f) * 100, float64(t.Negative) / float64(f) * 100
}

// SentimentIndex weights strong sentences against all polar ones on a 0..100 scale:
// (strongPositive-strongNegative)/(positive+negative)*50+50, or 50 when nothing is polar.
func SentimentIndex(t Totals) float64 {
	f := t.Frequency()
	if f == 0 {
		return 50
	}
	return float64(t.StrongPositive-t.StrongNegative)/float64(f)*50 + 50
}

func TotalsOf(judgments []SentenceJudgment) Totals {
	var t Totals
	for _, j := range judgments {
		switch j.Verdict {
		case Positive:
			t.Positive++
		case Negative:
			t.Negative++
		}
		if j.IsStrong() {
			if j.Verdict == Positive {
				t.StrongPositive++
			} else {
				t.StrongNegative++
			}
		}
	}
	return t
}

// Document is one source text about a subject.
type Document struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Link     string `json:"link,omitempty"`
	PostDate string `json:"postdate,omitempty"`
}

// DocumentResult is the scored outcome of one relevant document.
type DocumentResult struct {
	Title     string             `json:"title"`
	Link      string             `json:"link,omitempty"`
	PostDate  string             `json:"postdate,omitempty"`
	Season    Season             `json:"season"`
	Totals    Totals             `json:"totals"`
	Scores    []float64          `json:"scores"`
	Judgments []SentenceJudgment `json:"judgments"`
}

func NewDocumentResult(doc Document, judgments []SentenceJudgment) DocumentResult {
	scores := make([]float64, 0, len(judgments))
	for _, j := range judgments {
		scores = append(scores, j.Score)
	}
	return DocumentResult{
		Title:     doc.Title,
		Link:      doc.Link,
		PostDate:  doc.PostDate,
		Season:    SeasonOf(doc.PostDate),
		Totals:    TotalsOf(judgments),
		Scores:    scores,
		Judgments: judgments,
	}
}

// Kind says whether an aggregate covers one subject's documents or a category's subjects.
type Kind string

const (
	KindSubject  Kind = "subject"
	KindCategory Kind = "category"
)

// MemberRow is one row of an aggregate's member table: a document for a subject aggregate, a
// subject for a category aggregate.
type MemberRow struct {
	Name        string             `json:"name"`
	Link        string             `json:"link,omitempty"`
	PostDate    string             `json:"postdate,omitempty"`
	Season      Season             `json:"season,omitempty"`
	Documents   int                `json:"documents"`
	Totals      Totals             `json:"totals"`
	Index       float64            `json:"sentiment_index"`
	PositivePct float64            `json:"positive_pct"`
	NegativePct float64            `json:"negative_pct"`
	Judgments   []SentenceJudgment `json:"judgments,omitempty"`
}

// AggregateResult is the statistics for one subject or category. It is the unit the cache stores.
type AggregateResult struct {
	Kind       Kind   `json:"kind"`
	Name       string `json:"name"`
	SampleSize int    `json:"sample_size"`

	DocumentsConsidered int `json:"documents_considered"`
	DocumentsAnalyzed   int `json:"documents_analyzed"`

	Totals Totals `json:"totals"`
	// SentimentIndex is computed from pooled counts; MeanMemberIndex averages each member's own
	// index. They diverge when members have unequal sentence counts.
	SentimentIndex  float64 `json:"sentiment_index"`
	MeanMemberIndex float64 `json:"mean_member_index"`

	Seasons      map[Season]SeasonCounts `json:"seasons"`
	Scores       []float64               `json:"scores"`
	Satisfaction Satisfaction            `json:"satisfaction"`
	Members      []MemberRow             `json:"members"`

	NegativeSentences []string `json:"negative_sentences"`
	NegativeSummary   string   `json:"negative_summary"`
	// Interpretation is a short reading of the score distribution written by the oracle.
	Interpretation string `json:"interpretation,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}
