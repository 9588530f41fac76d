package processor

import "sync/atomic"

// Stats accumulates outcome counts. It is safe for concurrent use.
type Stats struct {
	total   atomic.Int64
	smaller atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	saved   atomic.Int64
}

// Record folds one outcome into the counters. Duplicates are repeat visits of
// a path already counted, so they are ignored.
func (s *Stats) Record(o Outcome) {
	switch o.Kind {
	case OutcomeDuplicate:
		return
	case OutcomeSmaller:
		s.smaller.Add(1)
		s.saved.Add(o.Saved())
	case OutcomeLargerSkipped, OutcomeAlreadyExists:
		s.skipped.Add(1)
	case OutcomeError:
		s.failed.Add(1)
	}
	s.total.Add(1)
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Summary {
	return Summary{
		Total:      int(s.total.Load()),
		Smaller:    int(s.smaller.Load()),
		Skipped:    int(s.skipped.Load()),
		Failed:     int(s.failed.Load()),
		BytesSaved: s.saved.Load(),
	}
}
