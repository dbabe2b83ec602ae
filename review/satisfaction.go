package review

import (
	"math"
	"sort"
)

// stdFloor replaces a standard deviation that is numerically zero so the five bands keep a width.
const stdFloor = 0.1

// Boundaries are the four ascending cut points between the five satisfaction levels, derived
// from the outlier-trimmed scores. The zero value is invalid and maps every score to level 3.
type Boundaries struct {
	Valid      bool       `json:"valid"`
	Mean       float64    `json:"mean"`
	Std        float64    `json:"std"`
	Thresholds [4]float64 `json:"thresholds"`
	Filtered   []float64  `json:"filtered"`
	Outliers   []float64  `json:"outliers"`
}

// ComputeBoundaries trims scores outside [Q1-1.5·IQR, Q3+1.5·IQR], then places cut points at
// mean-1.5σ, mean-0.5σ, mean+0.5σ and mean+1.5σ of what remains. σ is the population standard
// deviation.
func ComputeBoundaries(scores []float64) Boundaries {
	if len(scores) == 0 {
		return Boundaries{}
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var filtered, outliers []float64
	for _, s := range scores {
		if s < lower || s > upper {
			outliers = append(outliers, s)
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		filtered = append([]float64(nil), scores...)
	}

	mean, std := meanStd(filtered)
	if math.Abs(std) < 1e-8 {
		std = stdFloor
	}
	return Boundaries{
		Valid: true,
		Mean:  mean,
		Std:   std,
		Thresholds: [4]float64{
			mean - 1.5*std,
			mean - 0.5*std,
			mean + 0.5*std,
			mean + 1.5*std,
		},
		Filtered: filtered,
		Outliers: outliers,
	}
}

// percentile interpolates linearly between closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

// MapToLevel places score in one of five levels, 1 (very dissatisfied) to 5 (very satisfied).
func MapToLevel(score float64, b Boundaries) int {
	if !b.Valid {
		return 3
	}
	for i, t := range b.Thresholds {
		if score < t {
			return i + 1
		}
	}
	return 5
}

// LevelLabel is the Korean display name of a level.
func LevelLabel(level int) string {
	switch level {
	case 1:
		return "매우 불만족"
	case 2:
		return "불만족"
	case 3:
		return "보통"
	case 4:
		return "만족"
	case 5:
		return "매우 만족"
	default:
		return ""
	}
}

// Satisfaction is the level distribution of a score population.
type Satisfaction struct {
	Boundaries Boundaries `json:"boundaries"`
	Counts     [5]int     `json:"counts"`
	Average    float64    `json:"average"`
}

// Classify computes boundaries for scores and maps every score, outliers included, to a level.
func Classify(scores []float64) Satisfaction {
	s := Satisfaction{Boundaries: ComputeBoundaries(scores)}
	if len(scores) == 0 {
		return s
	}
	total := 0
	for _, sc := range scores {
		lvl := MapToLevel(sc, s.Boundaries)
		s.Counts[lvl-1]++
		total += lvl
	}
	s.Average = float64(total) / float64(len(scores))
	return s
}

// Median is the 50th percentile of scores, 0 when there are none.
func Median(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	return percentile(sorted, 50)
}
