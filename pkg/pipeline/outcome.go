package pipeline

import (
	"stopfill/pkg/audit"
	"stopfill/pkg/store"
)

// Outcome is what happened to one line direction in a run.
type Outcome int

const (
	OutcomeMatched   Outcome = iota // stops matched from the registry
	OutcomeSynthetic                // no registry stops; evenly spaced stops generated
	OutcomePaired                   // stops mirrored from the opposite direction
	OutcomeSkipped                  // no stops and no declared count to synthesize from
	OutcomeFailed                   // nothing written; previous record kept
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeSynthetic:
		return "synthetic"
	case OutcomePaired:
		return "paired"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Written reports whether the outcome produced a new record.
func (o Outcome) Written() bool {
	return o == OutcomeMatched || o == OutcomeSynthetic || o == OutcomePaired
}

// Result is the outcome of one line direction.
type Result struct {
	Ref          store.Ref
	Outcome      Outcome
	Stops        int
	FallbackHops int
	Err          error
}

// Summary is the outcome of one run.
type Summary struct {
	RunID   string
	Results []Result
	Audit   *audit.Report
}

// Count returns the number of directions with outcome o.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Written is the number of records rewritten.
func (s *Summary) Written() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome.Written() {
			n++
		}
	}
	return n
}
