// Package analysis runs the document pipeline over a subject's documents, aggregates the
// judgments and caches the result. Categories roll up their subjects.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/review-sentiment/review"
	"github.com/theimaginaryfoundation/review-sentiment/review/cache"
	"github.com/theimaginaryfoundation/review-sentiment/review/pipeline"
	"github.com/theimaginaryfoundation/review-sentiment/review/provider"
)

// Runner runs one document to completion.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) pipeline.State
}

// Options configures a Service. Every field is optional.
type Options struct {
	// Oracle writes the complaint summary and the distribution interpretation. Nil skips both.
	Oracle provider.Oracle
	Cache  *cache.Cache
	Logger *zap.Logger
	// Concurrency bounds how many documents run at once. <= 0 means 4.
	Concurrency int
	Now         func() time.Time
}

type Service struct {
	runner      Runner
	oracle      provider.Oracle
	cache       *cache.Cache
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewService(runner Runner, opts Options) *Service {
	s := &Service{
		runner:      runner,
		oracle:      opts.Oracle,
		cache:       opts.Cache,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type outcome struct {
	doc   review.Document
	state pipeline.State
	done  bool
}

// AnalyzeSubject scores documents until sampleSize of them were relevant and produced judgments,
// then aggregates those. sampleSize <= 0 means every document. A fresh cached result is returned
// without running anything. The only error is cancellation, checked between documents.
func (s *Service) AnalyzeSubject(ctx context.Context, subject string, docs []review.Document, sampleSize int) (review.AggregateResult, error) {
	if sampleSize <= 0 {
		sampleSize = len(docs)
	}
	log := s.logger.With(zap.String("subject", subject), zap.Int("sample_size", sampleSize))

	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, subject, sampleSize); ok {
			return r, nil
		}
	}

	outcomes := make([]outcome, len(docs))
	var analyzed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	var launched atomic.Int64
	for i, doc := range docs {
		if ctx.Err() != nil || analyzed.Load() >= int64(sampleSize) {
			break
		}
		g.Go(func() error {
			// g.Go waits for a free slot, so the target may have been met meanwhile.
			if ctx.Err() != nil || analyzed.Load() >= int64(sampleSize) {
				return nil
			}
			launched.Add(1)
			st := s.runner.Run(ctx, pipeline.Input{Subject: subject, Title: doc.Title, Text: doc.Text})
			outcomes[i] = outcome{doc: doc, state: st, done: true}
			if st.IsRelevant && len(st.Judgments) > 0 {
				analyzed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("analysis cancelled", zap.Int64("launched", launched.Load()), zap.Error(err))
		return review.AggregateResult{}, fmt.Errorf("AnalyzeSubject: %s: %w", subject, err)
	}

	agg := review.NewAggregator(review.KindSubject, subject).WithClock(s.now)
	taken, irrelevant, empty := 0, 0, 0
	for _, o := range outcomes {
		if !o.done || taken >= sampleSize {
			continue
		}
		switch {
		case !o.state.IsRelevant:
			irrelevant++
			continue
		case len(o.state.Judgments) == 0:
			empty++
			continue
		}
		if o.state.ConsistencyExceeded {
			log.Debug("keeping best-effort judgments", zap.String("title", o.doc.Title), zap.String("run_id", o.state.RunID))
		}
		agg.AddDocument(review.NewDocumentResult(o.doc, o.state.Judgments))
		taken++
	}

	result := agg.Finalize()
	result.SampleSize = sampleSize
	result.DocumentsConsidered = int(launched.Load())
	result.NegativeSummary = s.summarizeNegatives(ctx, result.NegativeSentences)
	result.Interpretation = s.interpret(ctx, result)

	log.Info("subject analyzed",
		zap.Int("considered", result.DocumentsConsidered),
		zap.Int("analyzed", taken),
		zap.Int("irrelevant", irrelevant),
		zap.Int("empty", empty),
		zap.Float64("sentiment_index", result.SentimentIndex),
	)

	if s.cache != nil {
		if err := s.cache.Put(ctx, subject, sampleSize, result); err != nil {
			log.Warn("cache put failed", zap.Error(err))
		}
	}
	return result, nil
}

// Subject is one member of a category. Load is called once; its failure skips the subject.
type Subject struct {
	Name string
	Load func() ([]review.Document, error)
}

// SubjectFailure records a subject left out of a category rollup.
type SubjectFailure struct {
	Subject string
	Err     error
}

// CategoryReport is a category aggregate plus its per-subject results.
type CategoryReport struct {
	Result   review.AggregateResult
	Subjects map[string]review.AggregateResult
	Failures []SubjectFailure
}

// AnalyzeCategory analyzes each subject in name order and rolls them up. A subject that fails to
// load is recorded and skipped; cancellation stops the rollup.
func (s *Service) AnalyzeCategory(ctx context.Context, category string, subjects []Subject, sampleSize int) (CategoryReport, error) {
	ordered := append([]Subject(nil), subjects...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	report := CategoryReport{Subjects: make(map[string]review.AggregateResult, len(ordered))}
	agg := review.NewAggregator(review.KindCategory, category).WithClock(s.now)
	considered := 0

	for _, sub := range ordered {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("AnalyzeCategory: %s: %w", category, err)
		}
		docs, err := sub.Load()
		if err != nil {
			s.logger.Warn("subject skipped", zap.String("category", category), zap.String("subject", sub.Name), zap.Error(err))
			report.Failures = append(report.Failures, SubjectFailure{Subject: sub.Name, Err: err})
			continue
		}
		r, err := s.AnalyzeSubject(ctx, sub.Name, docs, sampleSize)
		if err != nil {
			return report, fmt.Errorf("AnalyzeCategory: %s: %w", category, err)
		}
		report.Subjects[sub.Name] = r
		considered += r.DocumentsConsidered
		agg.AddSubject(r)
	}

	result := agg.Finalize()
	result.SampleSize = sampleSize
	result.DocumentsConsidered = considered
	result.NegativeSummary = s.summarizeNegatives(ctx, result.NegativeSentences)
	result.Interpretation = s.interpret(ctx, result)
	report.Result = result

	s.logger.Info("category analyzed",
		zap.String("category", category),
		zap.Int("subjects", len(report.Subjects)),
		zap.Int("failed", len(report.Failures)),
		zap.Float64("sentiment_index", result.SentimentIndex),
		zap.Float64("mean_subject_index", result.MeanMemberIndex),
	)
	return report, nil
}

func (s *Service) summarizeNegatives(ctx context.Context, sentences []string) string {
	if s.oracle == nil {
		return ""
	}
	top := review.NegativeHighlights(sentences, review.NegativeHighlightLimit)
	if len(top) == 0 {
		return noComplaints
	}
	answer, err := s.oracle.Complete(ctx, negativeSummaryPrompt(top))
	if err != nil {
		s.logger.Warn("negative summary failed", zap.Error(err))
		return negativeSummaryFailure
	}
	return strings.TrimSpace(answer)
}
