package journal

import (
	"context"
	"fmt"
)

// SeqSource numbers the passes of one run. Seqs start at 1 and never repeat
// within a run; wall time plays no part, so a re-run writes the same seqs.
type SeqSource interface {
	NextSeq() int64
}

// runSeq counts passes from a base. The runtime commits passes from a single
// goroutine, so it needs no lock.
type runSeq struct {
	last int64
}

func (s *runSeq) NextSeq() int64 {
	s.last++
	return s.last
}

// ResumeSeq returns a SeqSource that continues after the highest seq already
// journaled for runID, or starts at 1 for a run with no passes.
func (j *Journal) ResumeSeq(ctx context.Context, runID string) (SeqSource, error) {
	var last int64
	err := j.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM passes WHERE run_id = ?`, runID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("resume seq for %s: %w", runID, err)
	}
	return &runSeq{last: last}, nil
}
