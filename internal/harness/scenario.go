// Package harness provides the YAML scenario runner and golden-file
// conformance tests for the result set parser.
//
// A scenario bundles a record-types library, a columns markup and a row
// stream. The runner parses the rows and compares the canonical JSON of
// the resulting forest against a golden file; error scenarios assert the
// expected error class and code instead.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rsparser/internal/parser"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// RecordTypes defines the record-types library, mirroring the CUE shape
	// the CLI loader consumes.
	RecordTypes map[string]*schema.RecordTypeDef `yaml:"recordTypes"`

	// TopType names the record type the parser produces.
	TopType string `yaml:"topType"`

	// Markup is the ordered column label sequence.
	Markup []string `yaml:"markup"`

	// Rows is the result set, one positional vector per row.
	Rows [][]any `yaml:"rows"`

	// ExpectError, when set, is the error code the run must fail with.
	// The scenario then has no golden file.
	ExpectError string `yaml:"expectError,omitempty"`
}

// LoadScenario reads and decodes one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	return &s, nil
}

// LoadScenarios reads every scenario file in a directory, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory: %w", err)
	}
	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

// Run builds the scenario's library and parser, feeds every row, and
// returns the resulting forest.
func (s *Scenario) Run() (record.Object, error) {
	lib, err := schema.Build(&schema.LibraryDefinition{RecordTypes: s.RecordTypes})
	if err != nil {
		return nil, err
	}
	p, err := parser.New(lib, s.TopType)
	if err != nil {
		return nil, err
	}
	if err := p.Init(s.Markup); err != nil {
		return nil, err
	}
	for _, row := range s.Rows {
		if err := p.FeedRow(row); err != nil {
			return nil, err
		}
	}
	return p.Forest(), nil
}

// ErrorCode extracts the code of a parser or schema error for comparison
// against ExpectError.
func ErrorCode(err error) string {
	switch e := err.(type) {
	case *parser.MarkupError:
		return string(e.Code)
	case *parser.DataError:
		return string(e.Code)
	case *parser.UsageError:
		return string(e.Code)
	case *schema.DefinitionError:
		return string(e.Code)
	default:
		return ""
	}
}
