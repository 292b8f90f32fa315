package stress

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config controls a stress run. It can be loaded from YAML with [LoadConfig]
// and adjusted by command-line flags.
type Config struct {
	// Scenarios to run, by name. Empty means all of them.
	Scenarios []string `json:"scenarios" yaml:"scenarios"`
	// Goroutines contending in each scenario.
	Goroutines int `json:"goroutines" yaml:"goroutines"`
	// Iterations performed by each goroutine.
	Iterations int `json:"iterations" yaml:"iterations"`
	// Fair selects fair locks and semaphores where a scenario has a choice.
	Fair bool `json:"fair" yaml:"fair"`
	// Timeout bounds each scenario. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Goroutines: 8,
		Iterations: 1000,
		Timeout:    time.Minute,
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var merr error

	if c.Goroutines < 2 {
		merr = multierror.Append(merr, fmt.Errorf("goroutines must be at least 2, got %d", c.Goroutines))
	}

	if c.Iterations < 1 {
		merr = multierror.Append(merr, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}

	if c.Timeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}

	for _, name := range c.Scenarios {
		if _, err := Lookup(name); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if merr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, merr)
	}

	return nil
}
