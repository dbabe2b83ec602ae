// Package pipeline runs one document through validation, marked summarization and scoring. The
// scorer can send the summary back with feedback when a line contradicts its section, a bounded
// number of times.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review"
	"github.com/theimaginaryfoundation/review-sentiment/review/fileutils"
	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
	"github.com/theimaginaryfoundation/review-sentiment/review/provider"
	"github.com/theimaginaryfoundation/review-sentiment/review/scoring"
)

const (
	// MaxTextRunes bounds the document text handed to the oracle.
	MaxTextRunes       = 30000
	truncatedSuffix    = "... (내용 일부 생략)"
	validatorTextRunes = 2000
)

// SentenceScorer scores one marked line under its section's context.
type SentenceScorer interface {
	ScoreSentence(ctx context.Context, sentence string, positive, negative bool) float64
}

// Input is one document to run.
type Input struct {
	Subject string
	Title   string
	Text    string
}

// Calls counts oracle-facing stage executions.
type Calls struct {
	Validate  int `json:"validate"`
	Summarize int `json:"summarize"`
	Score     int `json:"score"`
}

// State is owned by a single run. Only the stage handlers mutate it.
type State struct {
	RunID    string `json:"run_id"`
	Subject  string `json:"subject"`
	Title    string `json:"title"`
	Document string `json:"-"`
	Stage    Stage  `json:"stage"`

	IsRelevant      bool                      `json:"is_relevant"`
	Summary         string                    `json:"summary,omitempty"`
	Judgments       []review.SentenceJudgment `json:"judgments"`
	FeedbackMessage string                    `json:"feedback_message,omitempty"`
	RetryCount      int                       `json:"retry_count"`
	// ConsistencyExceeded is set when the retry budget ran out with lines still inconsistent.
	ConsistencyExceeded bool  `json:"consistency_exceeded,omitempty"`
	Calls               Calls `json:"calls"`
}

// Pipeline is safe for concurrent use; every run has its own State.
type Pipeline struct {
	oracle provider.Oracle
	scorer SentenceScorer
	store  *lexicon.Store
	logger *zap.Logger
}

// New builds a pipeline. store only feeds prompt examples and may be nil.
func New(oracle provider.Oracle, scorer SentenceScorer, store *lexicon.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{oracle: oracle, scorer: scorer, store: store, logger: logger}
}

// Run processes one document from the validation stage. It never fails: oracle errors degrade to
// an irrelevant verdict or an empty summary.
func (p *Pipeline) Run(ctx context.Context, in Input) State {
	st := State{
		RunID:    uuid.NewString(),
		Subject:  in.Subject,
		Title:    in.Title,
		Document: fileutils.TruncateRunes(in.Text, MaxTextRunes, truncatedSuffix),
		Stage:    StageValidate,
	}
	return p.Resume(ctx, st)
}

// Resume continues st from its current stage until done.
func (p *Pipeline) Resume(ctx context.Context, st State) State {
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	log := p.logger.With(zap.String("run_id", st.RunID), zap.String("subject", st.Subject))

	for st.Stage != StageDone {
		switch st.Stage {
		case StageValidate:
			p.validate(ctx, log, &st)
		case StageSummarize:
			p.summarize(ctx, log, &st)
		case StageScore:
			p.score(ctx, log, &st)
		default:
			log.Error("unknown stage, stopping", zap.Stringer("stage", st.Stage))
			st.Stage = StageDone
			continue
		}
		next := Next(st.Stage, st)
		log.Debug("stage complete",
			zap.Stringer("stage", st.Stage),
			zap.Stringer("next", next),
			zap.Int("retry_count", st.RetryCount),
		)
		st.Stage = next
	}

	log.Info("pipeline done",
		zap.Bool("relevant", st.IsRelevant),
		zap.Int("judgments", len(st.Judgments)),
		zap.Int("retries", st.RetryCount),
		zap.Bool("consistency_exceeded", st.ConsistencyExceeded),
	)
	return st
}

type relevanceVerdict struct {
	Relevant bool   `json:"relevant" jsonschema:"required"`
	Reason   string `json:"reason" jsonschema:"required"`
}

func (p *Pipeline) validate(ctx context.Context, log *zap.Logger, st *State) {
	st.Calls.Validate++
	prompt := validatorPrompt(st.Subject, st.Title, fileutils.TruncateRunes(st.Document, validatorTextRunes, ""))

	if so, ok := p.oracle.(provider.StructuredOracle); ok {
		answer, err := so.CompleteJSON(ctx, prompt, "relevance_verdict", provider.GenerateSchema[relevanceVerdict]())
		if err != nil {
			log.Warn("validator failed, treating document as irrelevant", zap.Error(err))
			st.IsRelevant = false
			return
		}
		var v relevanceVerdict
		if err := fileutils.DecodeModelJSON(answer, &v); err == nil {
			st.IsRelevant = v.Relevant
			log.Debug("validator verdict", zap.Bool("relevant", v.Relevant), zap.String("reason", v.Reason))
			return
		}
		st.IsRelevant = parseYesNo(answer)
		return
	}

	answer, err := p.oracle.Complete(ctx, prompt)
	if err != nil {
		log.Warn("validator failed, treating document as irrelevant", zap.Error(err))
		st.IsRelevant = false
		return
	}
	st.IsRelevant = parseYesNo(answer)
	log.Debug("validator verdict", zap.Bool("relevant", st.IsRelevant), zap.String("answer", fileutils.Preview(answer, 80)))
}

// parseYesNo reads the leading word of the answer, ignoring quotes and markup around it.
func parseYesNo(answer string) bool {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) == 0 {
		return false
	}
	switch w := words[0]; {
	case strings.HasPrefix(w, "아니"), w == "no":
		return false
	case w == "예", w == "네", w == "yes":
		return true
	default:
		return false
	}
}

func (p *Pipeline) summarize(ctx context.Context, log *zap.Logger, st *State) {
	st.Calls.Summarize++
	prompt := summarizerPrompt(st.Subject, st.Title, st.Document, st.FeedbackMessage, p.store)
	answer, err := p.oracle.Complete(ctx, prompt)
	if err != nil {
		if st.Summary != "" {
			log.Warn("summarizer failed, keeping previous summary", zap.Error(err))
			return
		}
		log.Warn("summarizer failed, summary left empty", zap.Error(err))
		st.Summary = ""
		return
	}
	st.Summary = strings.TrimSpace(answer)
}

func (p *Pipeline) score(ctx context.Context, log *zap.Logger, st *State) {
	st.Calls.Score++
	st.FeedbackMessage = ""

	var (
		judgments []review.SentenceJudgment
		feedback  []string
		pol       = lexicon.Neutral
	)
	for _, raw := range strings.Split(st.Summary, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if h, ok := HeaderPolarity(line); ok {
			pol = h
			continue
		}
		sentence := trimBullet(line)
		plain := scoring.PlainText(sentence)
		if plain == "" {
			continue
		}

		positive, negative := pol == lexicon.Positive, pol == lexicon.Negative
		score := p.scorer.ScoreSentence(ctx, sentence, positive, negative)
		if inconsistent(score, pol) {
			score = p.scorer.ScoreSentence(ctx, sentence, positive, negative)
			if inconsistent(score, pol) {
				feedback = append(feedback, fmt.Sprintf(feedbackLineTemplate, plain, pol.Label(), score))
				log.Debug("inconsistent sentence",
					zap.String("sentence", fileutils.Preview(plain, 80)),
					zap.Stringer("context", pol),
					zap.Float64("score", score),
				)
			}
		}
		judgments = append(judgments, review.NewJudgment(plain, score))
	}
	st.Judgments = judgments

	if len(feedback) == 0 {
		return
	}
	st.FeedbackMessage = strings.Join(feedback, "\n")
	st.RetryCount++
	if st.RetryCount >= MaxRetries {
		st.ConsistencyExceeded = true
		log.Warn("consistency retries exhausted, keeping best-effort judgments",
			zap.Int("retry_count", st.RetryCount),
			zap.Int("inconsistent", len(feedback)),
		)
	}
}

func inconsistent(score float64, pol lexicon.Polarity) bool {
	switch pol {
	case lexicon.Positive:
		return score < 0
	case lexicon.Negative:
		return score > 0
	default:
		return false
	}
}

var headerPrefixes = []struct {
	prefix string
	pol    lexicon.Polarity
}{
	{"긍정적인 점", lexicon.Positive},
	{"부정적인 점", lexicon.Negative},
	{"본문에 언급된 긍정적인 점", lexicon.Positive},
	{"본문에 언급된 부정적인 점", lexicon.Negative},
	{"positive points", lexicon.Positive},
	{"negative points", lexicon.Negative},
}

// HeaderPolarity recognizes summary section header lines such as "- 긍정적인 점:" or "**Negative points**".
func HeaderPolarity(line string) (lexicon.Polarity, bool) {
	if strings.Contains(line, "****") {
		return lexicon.Neutral, false
	}
	h := strings.ToLower(strings.Trim(line, " -*#:•[]"))
	for _, hp := range headerPrefixes {
		if strings.HasPrefix(h, hp.prefix) {
			return hp.pol, true
		}
	}
	return lexicon.Neutral, false
}

// trimBullet strips list markers. A leading run of four asterisks is span markup and is kept.
func trimBullet(line string) string {
	for {
		switch {
		case strings.HasPrefix(line, "****"):
			return line
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "• "):
			line = strings.TrimSpace(line[strings.Index(line, " ")+1:])
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "•"):
			_, size := utf8.DecodeRuneInString(line)
			line = strings.TrimSpace(line[size:])
		default:
			return line
		}
	}
}
