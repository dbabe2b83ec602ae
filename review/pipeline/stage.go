package pipeline

import "fmt"

// Stage is one node of the document state machine.
type Stage int

const (
	StageValidate Stage = iota
	StageSummarize
	StageScore
	StageDone
)

// MaxRetries caps how many times the scorer may send a summary back for regeneration.
const MaxRetries = 3

var stageNames = map[Stage]string{
	StageValidate:  "validate",
	StageSummarize: "summarize",
	StageScore:     "score",
	StageDone:      "done",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	for k, v := range stageNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(b))
}

// Next is the transition function. It only reads st.
//
//	validate  -> summarize when relevant, else done
//	summarize -> score
//	score     -> summarize when feedback is pending and retries remain, else done
func Next(stage Stage, st State) Stage {
	switch stage {
	case StageValidate:
		if st.IsRelevant {
			return StageSummarize
		}
		return StageDone
	case StageSummarize:
		return StageScore
	case StageScore:
		if st.FeedbackMessage != "" && st.RetryCount < MaxRetries {
			return StageSummarize
		}
		return StageDone
	default:
		return StageDone
	}
}
