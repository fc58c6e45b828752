package harness

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rsparser/internal/record"
)

// RunGolden executes a scenario and compares its canonical JSON forest
// against the golden file named after the scenario. Error scenarios assert
// the expected error code instead.
//
// Golden files live in testdata/golden/<name>.golden and regenerate with
// `go test ./internal/harness -update`.
func RunGolden(t *testing.T, s *Scenario) {
	t.Helper()

	forest, err := s.Run()

	if s.ExpectError != "" {
		require.Error(t, err, "scenario %s expected error %s but succeeded:\n%s",
			s.Name, s.ExpectError, spew.Sdump(forest))
		require.Equal(t, s.ExpectError, ErrorCode(err),
			"scenario %s failed with the wrong error: %v", s.Name, err)
		return
	}

	require.NoError(t, err, "scenario %s failed", s.Name)
	payload, err := record.MarshalCanonical(forest)
	require.NoError(t, err, "scenario %s: canonical serialization:\n%s",
		s.Name, spew.Sdump(forest))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, payload)
}
