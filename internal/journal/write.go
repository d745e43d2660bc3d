package journal

import (
	"context"
	"fmt"
)

// BeginRun records a new run.
// Uses ON CONFLICT(id) DO NOTHING, so beginning the same run twice is harmless.
func (j *Journal) BeginRun(ctx context.Context, runID, root string) error {
	if runID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, root) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, root)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WritePass appends a pass and its mutations in one transaction and returns
// the pass id.
//
// If p.ID is empty it is computed with PassID. A pass whose id is already
// stored is silently ignored. The run must exist (foreign key constraint).
func (j *Journal) WritePass(ctx context.Context, p Pass) (string, error) {
	if p.ID == "" {
		id, err := PassID(p)
		if err != nil {
			return "", fmt.Errorf("write pass: %w", err)
		}
		p.ID = id
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write pass: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO passes (id, run_id, seq, kind, mutation_count, error_code)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID, p.RunID, p.Seq, string(p.Kind), len(p.Mutations), p.ErrorCode)
	if err != nil {
		return "", fmt.Errorf("write pass: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("write pass: %w", err)
	}
	if n == 0 {
		return p.ID, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mutations (pass_id, idx, op, element_id, other_id, tag, name, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("write pass: prepare mutations: %w", err)
	}
	defer stmt.Close()

	for i, m := range p.Mutations {
		if _, err := stmt.ExecContext(ctx, p.ID, i, string(m.Op), m.ID, m.Other, m.Tag, m.Name, m.Value); err != nil {
			return "", fmt.Errorf("write pass: mutation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write pass: commit: %w", err)
	}
	return p.ID, nil
}

// SetPassError annotates a stored pass with the runtime error code it
// finished with.
func (j *Journal) SetPassError(ctx context.Context, passID, code string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE passes SET error_code = ? WHERE id = ?`, code, passID)
	if err != nil {
		return fmt.Errorf("set pass error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pass error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set pass error: pass %s not found", passID)
	}
	return nil
}
