// Package canon produces canonical JSON (RFC 8785) and domain-separated
// content hashes for recorded mutation traces.
//
// Two traces that describe the same mutations always serialize to the same
// bytes, so their hashes can be used as journal keys and golden-file
// contents without a diff ever showing map-ordering or escaping noise.
//
// Canonical form:
//   - Object keys sorted by UTF-16 code units
//   - Strings NFC normalized; only quote, backslash and control characters escaped
//   - Integers only; floats and null are rejected
package canon
