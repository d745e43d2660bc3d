package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/vcore/internal/vdom"
)

// Recorder is a vdom.MutationSink that appends one pass to the journal per
// flush. It buffers mutations and writes them when the runtime commits.
//
// A nil journal keeps passes in memory only.
type Recorder struct {
	vdom.Mutations

	ctx     context.Context
	journal *Journal
	runID   string
	seq     SeqSource
	kind    PassKind
	passes  []Pass
}

var (
	_ vdom.MutationSink = (*Recorder)(nil)
	_ vdom.Committer    = (*Recorder)(nil)
)

// NewRecorder begins a run and returns a recorder for it. The first pass is
// recorded as a rebuild.
//
// With a nil seq, passes continue after the last seq the journal holds for
// runID (or start at 1 in memory), so recording into an existing run appends
// to it.
func NewRecorder(ctx context.Context, j *Journal, runID, root string, seq SeqSource) (*Recorder, error) {
	if j != nil {
		if err := j.BeginRun(ctx, runID, root); err != nil {
			return nil, err
		}
	}
	if seq == nil {
		seq = &runSeq{}
		if j != nil {
			resumed, err := j.ResumeSeq(ctx, runID)
			if err != nil {
				return nil, err
			}
			seq = resumed
		}
	}
	return &Recorder{
		ctx:     ctx,
		journal: j,
		runID:   runID,
		seq:     seq,
		kind:    PassRebuild,
	}, nil
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// SetKind sets the kind of the next committed pass.
func (r *Recorder) SetKind(k PassKind) { r.kind = k }

// TagLastError records the error code the last committed pass finished with.
// The runtime commits before it returns, so the code arrives after Commit.
func (r *Recorder) TagLastError(code string) error {
	if len(r.passes) == 0 {
		return fmt.Errorf("tag error: no pass committed")
	}
	last := &r.passes[len(r.passes)-1]
	last.ErrorCode = code
	if r.journal == nil {
		return nil
	}
	return r.journal.SetPassError(r.ctx, last.ID, code)
}

// Passes returns every pass committed so far.
func (r *Recorder) Passes() []Pass { return r.passes }

// Commit closes the current pass. After a rebuild, later passes default to
// flush.
func (r *Recorder) Commit() error {
	p := Pass{
		RunID:     r.runID,
		Seq:       r.seq.NextSeq(),
		Kind:      r.kind,
		Mutations: r.Take(),
	}
	if p.Mutations == nil {
		p.Mutations = []vdom.Mutation{}
	}
	if r.kind == PassRebuild {
		r.kind = PassFlush
	}

	id, err := PassID(p)
	if err != nil {
		return fmt.Errorf("commit pass %d: %w", p.Seq, err)
	}
	p.ID = id

	if r.journal != nil {
		if _, err := r.journal.WritePass(r.ctx, p); err != nil {
			return fmt.Errorf("commit pass %d: %w", p.Seq, err)
		}
	}
	r.passes = append(r.passes, p)
	slog.Debug("pass recorded", "run", r.runID, "seq", p.Seq, "kind", p.Kind, "mutations", len(p.Mutations))
	return nil
}
