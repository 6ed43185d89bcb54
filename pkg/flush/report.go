package flush

import "fmt"

// Report contains statistics from a flush run.
type Report struct {
	// Users is how many users had buffered entries to scan.
	Users int

	// Pairs is how many complete turn pairs the scan produced.
	Pairs int

	// Stored is how many pairs were committed this run.
	Stored int

	// Skipped is how many pairs were already committed.
	Skipped int

	// Malformed is how many buffered turns could not be paired.
	Malformed int

	// Deferred is how many pairs hit a transient failure and stay in the
	// buffer for the next run.
	Deferred int

	// Failed is how many pairs hit a non-transient commit failure.
	Failed int
}

// Summary returns a human-readable summary of the flush result.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"Flush complete: %d stored, %d skipped (already committed), %d deferred, %d failed\n"+
			"Scanned %d users (%d pairs, %d malformed turns)",
		r.Stored, r.Skipped, r.Deferred, r.Failed,
		r.Users, r.Pairs, r.Malformed,
	)
}

// Clean reports whether every scanned pair reached a terminal state.
func (r *Report) Clean() bool {
	return r.Deferred == 0 && r.Failed == 0
}

func (r *Report) add(other *Report) {
	r.Users += other.Users
	r.Pairs += other.Pairs
	r.Stored += other.Stored
	r.Skipped += other.Skipped
	r.Malformed += other.Malformed
	r.Deferred += other.Deferred
	r.Failed += other.Failed
}
