package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			RunGolden(t, s)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "missing.yaml"))
	require.Error(t, err)
}

func TestLoadScenario_Fields(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "simple-scalars.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "simple-scalars", s.Name)
	assert.Equal(t, "Person", s.TopType)
	assert.Equal(t, []string{"id", "firstName", "lastName"}, s.Markup)
	require.Len(t, s.Rows, 2)
	assert.Nil(t, s.Rows[1][2], "YAML null decodes to a nil cell")
}

func TestScenario_RunDirect(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "fetched-ref.yaml"))
	require.NoError(t, err)

	forest, err := s.Run()
	require.NoError(t, err)
	assert.Contains(t, forest, "records")
	assert.Contains(t, forest, "referredRecords")
}
