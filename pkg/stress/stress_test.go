package stress_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MacroPower/qsync/pkg/stress"
)

func smallConfig() stress.Config {
	return stress.Config{
		Goroutines: 4,
		Iterations: 200,
		Timeout:    30 * time.Second,
	}
}

func TestScenariosPass(t *testing.T) {
	t.Parallel()

	for _, s := range stress.Scenarios() {
		for _, fair := range []bool{false, true} {
			t.Run(s.Name, func(t *testing.T) {
				t.Parallel()

				cfg := smallConfig()
				cfg.Fair = fair

				ops, err := s.Run(t.Context(), cfg)
				require.NoError(t, err)
				assert.Positive(t, ops)
			})
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"fair-mutex", "FairMutex", "fair_mutex", " fairMutex "} {
		s, err := stress.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, "fair-mutex", s.Name)
	}

	_, err := stress.Lookup("spinlock")
	require.ErrorIs(t, err, stress.ErrUnknownScenario)

	all, err := stress.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(stress.Scenarios()))

	some, err := stress.Select([]string{"latch", "Mutex"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "latch", some[0].Name)
	assert.Equal(t, "mutex", some[1].Name)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios: [mutex, semaphore]
goroutines: 6
timeout: 5s
`), 0o600))

	cfg, err := stress.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"mutex", "semaphore"}, cfg.Scenarios)
	assert.Equal(t, 6, cfg.Goroutines)
	assert.Equal(t, stress.DefaultConfig().Iterations, cfg.Iterations)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	require.NoError(t, cfg.Validate())

	bad := stress.Config{Goroutines: 1, Iterations: 0, Scenarios: []string{"nope"}}
	err = bad.Validate()
	require.ErrorIs(t, err, stress.ErrInvalidConfig)
	require.ErrorIs(t, err, stress.ErrUnknownScenario)
	assert.Contains(t, err.Error(), "3 errors occurred")

	_, err = stress.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRunner(t *testing.T) {
	t.Parallel()

	cfg := smallConfig()
	cfg.Scenarios = []string{"mutex", "latch"}

	r := stress.NewRunner(cfg, slog.New(slog.DiscardHandler))

	var (
		mu     sync.Mutex
		events []any
	)

	r.Subscribe(func(evt any) {
		mu.Lock()
		defer mu.Unlock()

		events = append(events, evt)
	})

	report, err := r.Run(t.Context())
	require.NoError(t, err)
	assert.True(t, report.Passed())
	require.Len(t, report.Results, 2)
	assert.NotEmpty(t, report.ID.String())

	assert.Equal(t, []any{
		stress.EventSetScenarioTotal(2),
		stress.EventRunningScenario("mutex"),
		stress.EventFinishedScenario{Scenario: "mutex"},
		stress.EventRunningScenario("latch"),
		stress.EventFinishedScenario{Scenario: "latch"},
		stress.EventDone{},
	}, events)
}

func TestRunnerInvalidConfig(t *testing.T) {
	t.Parallel()

	r := stress.NewRunner(stress.Config{}, slog.New(slog.DiscardHandler))

	var last any
	r.Subscribe(func(evt any) { last = evt })

	report, err := r.Run(t.Context())
	require.ErrorIs(t, err, stress.ErrInvalidConfig)
	assert.Empty(t, report.Results)

	done, ok := last.(stress.EventDone)
	require.True(t, ok)
	require.ErrorIs(t, done.Err, stress.ErrInvalidConfig)
}

func TestRender(t *testing.T) {
	t.Parallel()

	report := &stress.Report{
		Config: smallConfig(),
		Results: []stress.Result{
			{Scenario: "mutex", Operations: 800, Passed: true, ElapsedMS: 1.5},
			{Scenario: "fair-mutex", Operations: 4, Error: "invariant violated: waiter 2 acquired in position 1"},
		},
	}

	var buf bytes.Buffer

	require.NoError(t, stress.Render(&buf, report, stress.RenderOpts{Format: stress.OutputText}))
	out := buf.String()
	assert.Contains(t, out, "✓ Mutex")
	assert.Contains(t, out, "✗ Fair-Mutex")
	assert.Contains(t, out, "waiter 2 acquired in position 1")
	assert.Contains(t, out, "1/2 scenarios passed")
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, stress.Render(&buf, report, stress.RenderOpts{Format: stress.OutputJSON}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["results"], 2)

	buf.Reset()
	require.NoError(t, stress.Render(&buf, report, stress.RenderOpts{Format: stress.OutputYAML}))

	var fromYAML struct {
		Results []stress.Result `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "fair-mutex", fromYAML.Results[1].Scenario)
	assert.False(t, fromYAML.Results[1].Passed)

	err := stress.Render(&buf, report, stress.RenderOpts{Format: "xml"})
	require.ErrorIs(t, err, stress.ErrUnknownOutput)

	f, err := stress.ParseOutputFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, stress.OutputYAML, f)
}
