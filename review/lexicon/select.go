package lexicon

// Polarity is the declared sentiment of the sentence a phrase appears in.
type Polarity int

const (
	Neutral Polarity = iota
	Positive
	Negative
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Label is the Korean name used in prompts.
func (p Polarity) Label() string {
	switch p {
	case Positive:
		return "긍정"
	case Negative:
		return "부정"
	default:
		return "중립"
	}
}

// PolarityOf folds the two context flags. Positive wins when both are set.
func PolarityOf(positive, negative bool) Polarity {
	switch {
	case positive:
		return Positive
	case negative:
		return Negative
	default:
		return Neutral
	}
}

// SelectContextual picks the stored value matching the polarity: the largest positive value in a
// positive context, the smallest negative value in a negative one, and the oldest value when no
// polarity is declared. ok is false when nothing matches.
func SelectContextual(values []float64, p Polarity) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch p {
	case Positive:
		best, found := 0.0, false
		for _, v := range values {
			if v > 0 && (!found || v > best) {
				best, found = v, true
			}
		}
		return best, found
	case Negative:
		best, found := 0.0, false
		for _, v := range values {
			if v < 0 && (!found || v < best) {
				best, found = v, true
			}
		}
		return best, found
	default:
		return values[0], true
	}
}
