// Package vdom implements the reconciliation core of the vcore UI runtime.
//
// A Runtime owns a table of scopes, one per mounted component instance. Each
// scope stores the tree its render function last produced together with a
// Mount: a pre-order array mapping every node of that tree to the element or
// child scope it was mounted as.
//
// ARCHITECTURE:
//
// Single-Writer Runtime:
// All rendering, diffing and reactive writes happen on one goroutine. Work
// from other goroutines (scope tasks) is posted to a FIFO queue and applied by
// Run inside the effect context of the scope that spawned it.
//
// Flush Flow:
//  1. Posted events are applied; reactive writes mark scopes dirty
//  2. The lowest (height, id) dirty scope is re-rendered
//  3. The new tree is diffed against the stored tree; mutations stream to the sink
//  4. The scope leaves the dirty set only after its diff completes
//
// Component Reconciliation:
//   - Different component identity at the same position: replace. The new
//     instance is mounted first, then one ReplaceNode swaps the host nodes,
//     then the old scope and its owned cells are torn down.
//   - Same identity and memoizable props: nothing runs, nothing is emitted.
//   - Same identity otherwise: props are swapped in and the child re-renders.
//
// Children are compared strictly by position. Attribute and text mutations for
// a node are emitted before any mutation of its descendants, so every batch can
// be applied in order without buffering.
package vdom
