package testutil

import "sync"

// ScriptedSeq is a journal.SeqSource for tests. It hands out 1, 2, 3... and
// remembers every seq it issued, so a test can check which passes a step
// produced. Rewind starts the script over for a replayed scenario.
type ScriptedSeq struct {
	mu     sync.Mutex
	issued []int64
}

// NewScriptedSeq creates a source whose first NextSeq returns 1.
func NewScriptedSeq() *ScriptedSeq {
	return &ScriptedSeq{}
}

// NextSeq issues the next seq.
func (s *ScriptedSeq) NextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := int64(len(s.issued)) + 1
	s.issued = append(s.issued, next)
	return next
}

// Issued returns the seqs handed out since creation or the last Rewind.
func (s *ScriptedSeq) Issued() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.issued))
	copy(out, s.issued)
	return out
}

// Rewind forgets every issued seq; the next NextSeq returns 1 again.
func (s *ScriptedSeq) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = s.issued[:0]
}
