package resolver

// Outcome classifies a resolution.
type Outcome int

const (
	OutcomeAnswered Outcome = iota + 1
	OutcomeNotFound
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Source records where an answer came from.
type Source string

const (
	SourceNone      Source = ""
	SourceKnowledge Source = "knowledge_base"
	SourceGenerated Source = "generated"
)

// Result is the outcome of resolving one question. Exactly one of Answer
// (OutcomeAnswered) or Err (OutcomeError) is meaningful.
type Result struct {
	Outcome Outcome
	Answer  string
	Source  Source
	Err     error
}

// Answered builds an OutcomeAnswered result.
func Answered(text string, src Source) Result {
	return Result{Outcome: OutcomeAnswered, Answer: text, Source: src}
}

// NotFound builds an OutcomeNotFound result.
func NotFound() Result {
	return Result{Outcome: OutcomeNotFound}
}

// Failed builds an OutcomeError result carrying cause.
func Failed(cause error) Result {
	return Result{Outcome: OutcomeError, Err: cause}
}
