package testutil

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run id every time.
// It satisfies journal.RunIDGenerator.
//
// Journal pass ids hash the run id, so a fixed id is what makes two runs of
// one scenario produce identical pass ids.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id selects
// DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
