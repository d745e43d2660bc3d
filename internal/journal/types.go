package journal

import (
	"fmt"

	"github.com/roach88/vcore/internal/canon"
	"github.com/roach88/vcore/internal/vdom"
)

// PassKind says what triggered a pass.
type PassKind string

const (
	// PassRebuild is the initial mount of the root.
	PassRebuild PassKind = "rebuild"
	// PassFlush is a flush of dirty scopes.
	PassFlush PassKind = "flush"
	// PassEvent is a flush driven by posted events in the runtime loop.
	PassEvent PassKind = "event"
)

// Run is one recorded runtime instance.
type Run struct {
	ID     string `json:"id"`
	Root   string `json:"root"`
	Passes int    `json:"passes"`
}

// Pass is one flush and the mutations it emitted, in emission order.
type Pass struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Seq       int64           `json:"seq"`
	Kind      PassKind        `json:"kind"`
	Mutations []vdom.Mutation `json:"mutations"`
	// ErrorCode is the runtime error code the pass finished with, if any.
	ErrorCode string `json:"error_code,omitempty"`
}

// PassID computes the content-addressed id of a pass from its run, seq,
// kind and mutations. The error code is an annotation and is not hashed.
func PassID(p Pass) (string, error) {
	obj := map[string]any{
		"run_id":    p.RunID,
		"seq":       p.Seq,
		"kind":      string(p.Kind),
		"mutations": p.Mutations,
	}
	id, err := canon.Hash(canon.DomainPass, obj)
	if err != nil {
		return "", fmt.Errorf("PassID: %w", err)
	}
	return id, nil
}
