package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review"
)

// outlierShareLimit is the outlier percentage above which the distribution is called extreme.
const outlierShareLimit = 10.0

func interpretationPrompt(r review.AggregateResult) string {
	total := len(r.Scores)
	posPct, negPct := r.Totals.Percentages()

	var levels strings.Builder
	for i, n := range r.Satisfaction.Counts {
		if i > 0 {
			levels.WriteByte('\n')
		}
		fmt.Fprintf(&levels, "- %s: %d개 (%.1f%%)", review.LevelLabel(i+1), n, share(n, total))
	}

	outliers := len(r.Satisfaction.Boundaries.Outliers)
	outlierPct := share(outliers, total)
	note := fewOutliers
	if outlierPct > outlierShareLimit {
		note = manyOutliers
	}

	return fmt.Sprintf(interpretationTemplate,
		total,
		r.Totals.Positive, posPct,
		r.Totals.Negative, negPct,
		levels.String(),
		r.Satisfaction.Average,
		slices.Min(r.Scores), slices.Max(r.Scores), review.Median(r.Scores),
		r.Satisfaction.Boundaries.Mean, r.Satisfaction.Boundaries.Std,
		outliers, outlierPct, note,
	)
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// interpret asks the oracle to read the score distribution of r. A nil oracle or an empty
// distribution gives ""; an oracle failure gives a fixed sentence built from the averages.
func (s *Service) interpret(ctx context.Context, r review.AggregateResult) string {
	if s.oracle == nil || len(r.Scores) == 0 {
		return ""
	}
	answer, err := s.oracle.Complete(ctx, interpretationPrompt(r))
	if err == nil {
		answer = strings.TrimSpace(answer)
	}
	if err != nil || answer == "" {
		s.logger.Warn("distribution interpretation failed", zap.String("name", r.Name), zap.Error(err))
		posPct, _ := r.Totals.Percentages()
		return interpretationFallback(r.Satisfaction.Average, posPct)
	}
	return answer
}
