// Package cell implements the reactive cell storage used by the vcore runtime.
//
// Values live in an Arena of generational slots. A Key addresses a slot by
// index plus the generation it was issued under, so a Key that outlives its
// slot is detected instead of silently aliasing whatever reused the index.
//
// # Borrow Model
//
// Every access goes through a guard:
//   - Borrow returns a ReadGuard. Any number may be live at once.
//   - BorrowMut returns a WriteGuard. It excludes every other guard.
//
// Conflicts are detected at acquisition time and reported as a *BorrowError
// with code BORROW_CONFLICT. Acquisition never blocks: contention is a hard
// error visible to the caller, so no deadlock is possible.
//
// Set replaces a payload outright. Guards acquired before the replacement are
// detached: Value reports STALE_HANDLE and Release becomes a no-op.
//
// # Ownership
//
// Slots are created through an Owner. Dropping the Owner invalidates every
// slot it holds, bumping each generation and freeing the payload. Owners are
// the only teardown mechanism; Keys are plain values and are never "moved".
package cell
