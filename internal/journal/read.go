package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vcore/internal/vdom"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// ListRuns returns every run with its pass count.
// UUIDv7 ids sort by creation time, so ORDER BY id lists oldest first.
//
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.root, COUNT(p.id)
		FROM runs r
		LEFT JOIN passes p ON p.run_id = r.id
		GROUP BY r.id, r.root
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Root, &r.Passes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently started run.
func (j *Journal) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := j.db.QueryRowContext(ctx, `
		SELECT r.id, r.root, (SELECT COUNT(*) FROM passes p WHERE p.run_id = r.id)
		FROM runs r
		ORDER BY r.id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Root, &r.Passes)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query latest run: %w", err)
	}
	return r, nil
}

// ReadRun returns a run's passes ordered by seq, each with its mutations in
// emission order.
func (j *Journal) ReadRun(ctx context.Context, runID string) ([]Pass, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	passes, err := j.readPasses(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := range passes {
		muts, err := j.readMutations(ctx, passes[i].ID)
		if err != nil {
			return nil, err
		}
		passes[i].Mutations = muts
	}
	return passes, nil
}

func (j *Journal) readPasses(ctx context.Context, runID string) ([]Pass, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, seq, kind, error_code
		FROM passes
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []Pass{}
	for rows.Next() {
		var p Pass
		var kind string
		if err := rows.Scan(&p.ID, &p.RunID, &p.Seq, &kind, &p.ErrorCode); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.Kind = PassKind(kind)
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

func (j *Journal) readMutations(ctx context.Context, passID string) ([]vdom.Mutation, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT op, element_id, other_id, tag, name, value
		FROM mutations
		WHERE pass_id = ?
		ORDER BY idx ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	muts := []vdom.Mutation{}
	for rows.Next() {
		var m vdom.Mutation
		var op string
		if err := rows.Scan(&op, &m.ID, &m.Other, &m.Tag, &m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		m.Op = vdom.Op(op)
		muts = append(muts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return muts, nil
}

// CountByOp returns how many mutations of each op a run emitted.
func (j *Journal) CountByOp(ctx context.Context, runID string) (map[vdom.Op]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT m.op, COUNT(*)
		FROM mutations m
		JOIN passes p ON p.id = m.pass_id
		WHERE p.run_id = ?
		GROUP BY m.op
		ORDER BY m.op ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query op counts: %w", err)
	}
	defer rows.Close()

	counts := map[vdom.Op]int{}
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("scan op count: %w", err)
		}
		counts[vdom.Op(op)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate op counts: %w", err)
	}
	return counts, nil
}
