package journal

import "github.com/google/uuid"

// RunIDGenerator creates run ids.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a millisecond timestamp in its high bits, so ids sort by
// creation time and ListRuns can order by id alone.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
