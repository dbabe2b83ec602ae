package review

import "time"

// Aggregator accumulates documents into a subject aggregate, or subject aggregates into a
// category aggregate. It is not safe for concurrent use.
type Aggregator struct {
	kind Kind
	name string
	now  func() time.Time

	totals    Totals
	seasons   map[Season]SeasonCounts
	scores    []float64
	members   []MemberRow
	negatives []string
	docs      int
}

func NewAggregator(kind Kind, name string) *Aggregator {
	seasons := make(map[Season]SeasonCounts, len(Seasons))
	for _, s := range Seasons {
		seasons[s] = SeasonCounts{}
	}
	return &Aggregator{kind: kind, name: name, now: time.Now, seasons: seasons}
}

// WithClock replaces the clock used for GeneratedAt.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// AddDocument folds one document into the aggregate.
func (a *Aggregator) AddDocument(d DocumentResult) {
	a.totals = a.totals.Add(d.Totals)
	a.docs++

	season := d.Season
	if season == "" {
		season = SeasonOf(d.PostDate)
	}
	sc := a.seasons[season]
	sc.Documents++
	sc.Positive += d.Totals.Positive
	sc.Negative += d.Totals.Negative
	a.seasons[season] = sc

	a.scores = append(a.scores, d.Scores...)
	for _, j := range d.Judgments {
		if j.Verdict == Negative {
			a.negatives = append(a.negatives, j.Sentence)
		}
	}

	pos, neg := d.Totals.Percentages()
	a.members = append(a.members, MemberRow{
		Name:        d.Title,
		Link:        d.Link,
		PostDate:    d.PostDate,
		Season:      season,
		Documents:   1,
		Totals:      d.Totals,
		Index:       SentimentIndex(d.Totals),
		PositivePct: pos,
		NegativePct: neg,
		Judgments:   append([]SentenceJudgment(nil), d.Judgments...),
	})
}

// AddSubject folds a finished subject aggregate into a category aggregate. The subject's pooled
// index becomes its member index.
func (a *Aggregator) AddSubject(r AggregateResult) {
	a.totals = a.totals.Add(r.Totals)
	a.docs += r.DocumentsAnalyzed

	for season, c := range r.Seasons {
		sc := a.seasons[season]
		sc.Documents += c.Documents
		sc.Positive += c.Positive
		sc.Negative += c.Negative
		a.seasons[season] = sc
	}
	a.scores = append(a.scores, r.Scores...)
	a.negatives = append(a.negatives, r.NegativeSentences...)

	pos, neg := r.Totals.Percentages()
	a.members = append(a.members, MemberRow{
		Name:        r.Name,
		Documents:   r.DocumentsAnalyzed,
		Totals:      r.Totals,
		Index:       r.SentimentIndex,
		PositivePct: pos,
		NegativePct: neg,
	})
}

// Finalize computes the indices and satisfaction levels. Document judgments get their level from
// the pooled boundaries.
func (a *Aggregator) Finalize() AggregateResult {
	sat := Classify(a.scores)

	members := make([]MemberRow, len(a.members))
	var indexSum float64
	for i, m := range a.members {
		indexSum += m.Index
		if len(m.Judgments) > 0 {
			js := make([]SentenceJudgment, len(m.Judgments))
			for k, j := range m.Judgments {
				j.SatisfactionLevel = MapToLevel(j.Score, sat.Boundaries)
				js[k] = j
			}
			m.Judgments = js
		}
		members[i] = m
	}
	mean := 50.0
	if len(members) > 0 {
		mean = indexSum / float64(len(members))
	}

	seasons := make(map[Season]SeasonCounts, len(a.seasons))
	for k, v := range a.seasons {
		seasons[k] = v
	}

	return AggregateResult{
		Kind:              a.kind,
		Name:              a.name,
		DocumentsAnalyzed: a.docs,
		Totals:            a.totals,
		SentimentIndex:    SentimentIndex(a.totals),
		MeanMemberIndex:   mean,
		Seasons:           seasons,
		Scores:            append([]float64(nil), a.scores...),
		Satisfaction:      sat,
		Members:           members,
		NegativeSentences: NegativeHighlights(a.negatives, 0),
		GeneratedAt:       a.now().UTC(),
	}
}
