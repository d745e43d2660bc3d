// Package harness runs scenarios against the virtual runtime and checks the
// mutation passes it records.
//
// # Scenario Format
//
// Scenarios are YAML (unknown fields rejected) or CUE files:
//
//	name: counter-sequence
//	description: "What this scenario validates"
//	root: counter
//	props: { initial: 10 }
//	steps:
//	  - action: rebuild
//	  - action: set
//	    cell: count
//	    value: 0
//	  - action: flush
//	assertions:
//	  - type: mutation_count
//	    op: set_text
//	    count: 1
//
// # Catalog
//
// Roots and cells come from a fixed set of components:
//
//   - counter: cell count (props initial), renders <div>High-Five counter: N</div>
//   - label: props x, memoized on equal x, renders <p data-x="x">label</p>
//   - switcher: cells child and x, renders <div> around a label or a counter
//   - maybe: cell show, aborts its render when show is false
//
// # Steps
//
//   - rebuild: mount the root (must be first)
//   - set: write a cell directly; the owning scope is marked dirty
//   - flush: render dirty scopes and record one pass
//   - post: post the write to the cell's scope and run one loop turn; the
//     pass is recorded as an event pass
//
// # Assertion Types
//
//   - mutation_count: exactly N mutations, optionally of one op
//   - mutation_order: ops appear in the given order
//   - no_structural: passes after the rebuild only touch text and attributes
//   - text_sequence: the set_text values, in order
//   - error_code: some step finished with the runtime error code
//
// # Deterministic Testing
//
// Every run uses a fixed run id (scenario run_id or testutil.DefaultRunID)
// and a fresh testutil.ScriptedSeq, so pass seqs, pass ids and golden
// snapshots are identical across runs.
package harness
