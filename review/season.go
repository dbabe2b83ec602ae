package review

// Season is the closed set of publish-date buckets.
type Season string

const (
	Spring        Season = "spring"
	Summer        Season = "summer"
	Fall          Season = "fall"
	Winter        Season = "winter"
	UnknownSeason Season = "unknown"
)

// Seasons lists every bucket in display order.
var Seasons = []Season{Spring, Summer, Fall, Winter, UnknownSeason}

// Label is the Korean display name.
func (s Season) Label() string {
	switch s {
	case Spring:
		return "봄"
	case Summer:
		return "여름"
	case Fall:
		return "가을"
	case Winter:
		return "겨울"
	default:
		return "미상"
	}
}

// SeasonOf buckets a publish date by month. Only the digits are read, so "20240715",
// "2024-07-15" and "2024.07.15." all work; the month is digits 5-6. Fewer than six digits or a
// month outside 1..12 is unknown.
func SeasonOf(postDate string) Season {
	digits := make([]rune, 0, 8)
	for _, r := range postDate {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 6 {
		return UnknownSeason
	}
	month := int(digits[4]-'0')*10 + int(digits[5]-'0')
	switch {
	case month >= 3 && month <= 5:
		return Spring
	case month >= 6 && month <= 8:
		return Summer
	case month >= 9 && month <= 11:
		return Fall
	case month == 12 || month == 1 || month == 2:
		return Winter
	default:
		return UnknownSeason
	}
}

// SeasonCounts tallies documents and polar sentences in one season.
type SeasonCounts struct {
	Documents int `json:"documents"`
	Positive  int `json:"positive"`
	Negative  int `json:"negative"`
}
