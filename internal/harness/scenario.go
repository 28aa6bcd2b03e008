package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/frontier"
	"github.com/roach88/statespace/internal/hashindex"
	"github.com/roach88/statespace/internal/models"
	"github.com/roach88/statespace/internal/statestore"
)

// Scenario defines a conformance scenario: one model explored under every
// combination of the matrix.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is a built-in name, "random", or a CUE rule file path with an
	// optional "#model" suffix. Relative paths are resolved against the
	// scenario file.
	Model string `yaml:"model"`

	// Params override the model's defaults.
	Params map[string]int `yaml:"params,omitempty"`

	// Matrix lists the settings to cross. Empty lists take defaults.
	Matrix Matrix `yaml:"matrix"`

	// MaxStates caps every run. Zero means no cap.
	MaxStates int64 `yaml:"max_states,omitempty"`

	// ChunkKinds adds chunk partitions to every store.
	ChunkKinds int `yaml:"chunk_kinds,omitempty"`

	// Expect is checked against every run. When nil the model's own counts
	// are used where it has them.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions are additional per-run checks.
	// Supported types: partition_records, states_at_least, states_at_most
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is the fixed run id given to every run.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Matrix lists the explorer settings a scenario is run under.
type Matrix struct {
	Workers    []int    `yaml:"workers,omitempty"`
	Strategies []string `yaml:"strategies,omitempty"`
	Frontiers  []string `yaml:"frontiers,omitempty"`
	Backends   []string `yaml:"backends,omitempty"`
}

// Expect holds exact expectations. Nil fields are not checked.
type Expect struct {
	States      *int64 `yaml:"states,omitempty"`
	Transitions *int64 `yaml:"transitions,omitempty"`
	// Depth applies to level-strategy runs only.
	Depth     *int  `yaml:"depth,omitempty"`
	Truncated *bool `yaml:"truncated,omitempty"`
}

// Assertion is a per-run check beyond Expect.
type Assertion struct {
	// Type specifies the assertion type:
	// - "partition_records": Partition holds exactly Count records
	// - "states_at_least": at least Count states were found
	// - "states_at_most": at most Count states were found
	Type string `yaml:"type"`

	// Partition is "root", "sub" or "chunkN" (used by partition_records).
	Partition string `yaml:"partition,omitempty"`

	Count int64 `yaml:"count"`
}

// Assertion type constants.
const (
	AssertPartitionRecords = "partition_records"
	AssertStatesAtLeast    = "states_at_least"
	AssertStatesAtMost     = "states_at_most"
)

// RandomModel is the model name for generated random graphs.
const RandomModel = "random"

// LoadScenario reads and parses a scenario YAML file. A relative rule file
// path in Model is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a rule file path relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if models.IsRuleFile(scenario.Model) && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid, and
// fills matrix defaults.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.MaxStates < 0 {
		return fmt.Errorf("max_states must not be negative")
	}
	if s.ChunkKinds < 0 {
		return fmt.Errorf("chunk_kinds must not be negative")
	}

	m := &s.Matrix
	if len(m.Workers) == 0 {
		m.Workers = []int{1, 2, 4}
	}
	if len(m.Strategies) == 0 {
		for _, st := range explore.Strategies() {
			m.Strategies = append(m.Strategies, string(st))
		}
	}
	if len(m.Frontiers) == 0 {
		m.Frontiers = []string{string(frontier.KindLockFree)}
	}
	if len(m.Backends) == 0 {
		m.Backends = []string{string(statestore.BackendSlab)}
	}

	for i, w := range m.Workers {
		if w < 1 || w > hashindex.MaxThreads {
			return fmt.Errorf("matrix.workers[%d]: %d out of range [1, %d]", i, w, hashindex.MaxThreads)
		}
	}
	for i, st := range m.Strategies {
		if _, err := explore.ParseStrategy(st); err != nil {
			return fmt.Errorf("matrix.strategies[%d]: %w", i, err)
		}
	}
	for i, k := range m.Frontiers {
		if _, err := frontier.ParseKind(k); err != nil {
			return fmt.Errorf("matrix.frontiers[%d]: %w", i, err)
		}
	}
	for i, b := range m.Backends {
		if _, err := statestore.ParseBackend(b); err != nil {
			return fmt.Errorf("matrix.backends[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertPartitionRecords:
		if a.Partition == "" {
			return fmt.Errorf("%s requires partition", a.Type)
		}
	case AssertStatesAtLeast, AssertStatesAtMost:
	default:
		return fmt.Errorf("unknown assertion type %q (want one of %s)", a.Type,
			strings.Join([]string{AssertPartitionRecords, AssertStatesAtLeast, AssertStatesAtMost}, ", "))
	}
	if a.Count < 0 {
		return fmt.Errorf("%s count must not be negative", a.Type)
	}
	return nil
}
