package harvest

import "fmt"

// Result contains statistics from a harvest run.
type Result struct {
	Files        int
	Entries      int
	Appended     int
	Malformed    int
	SkippedFiles int
}

// Summary returns a human-readable summary of the harvest result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Harvest complete: %d turns appended from %d files (%d entries)\n"+
			"%d malformed entries, %d files skipped",
		r.Appended, r.Files, r.Entries,
		r.Malformed, r.SkippedFiles,
	)
}

func (r *Result) add(other *Result) {
	r.Entries += other.Entries
	r.Appended += other.Appended
	r.Malformed += other.Malformed
	r.SkippedFiles += other.SkippedFiles
}
