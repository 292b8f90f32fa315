package stress

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrViolation       = errors.New("invariant violated")
)

// Scenario is a named contention workload. Run returns the number of
// operations performed, and an error wrapping [ErrViolation] if the
// primitive misbehaved.
type Scenario struct {
	Run         func(ctx context.Context, cfg Config) (int64, error)
	Name        string
	Description string
}

var registry = []Scenario{
	{Name: "mutex", Description: "reentrant lock protects a shared counter", Run: runMutex},
	{Name: "fair-mutex", Description: "fair lock grants waiters in arrival order", Run: runFairMutex},
	{Name: "rwlock", Description: "readers never observe a half-finished write", Run: runRWLock},
	{Name: "semaphore", Description: "permits bound the number of holders", Run: runSemaphore},
	{Name: "latch", Description: "every waiter is released when the count hits zero", Run: runLatch},
	{Name: "barrier", Description: "parties trip the barrier once per round", Run: runBarrier},
	{Name: "condition", Description: "producers and consumers hand off over a blocking queue", Run: runCondition},
	{Name: "cancellation", Description: "cancelled and timed-out waiters leave the queue usable", Run: runCancellation},
	{Name: "executor", Description: "a worker pool runs every submitted task", Run: runExecutor},
}

// Scenarios returns every scenario, in run order.
func Scenarios() []Scenario {
	return slices.Clone(registry)
}

// NormalizeName converts a scenario name in any common case style to the
// kebab-case form used by the registry.
func NormalizeName(name string) string {
	return strcase.ToKebab(strings.TrimSpace(name))
}

// Lookup finds a scenario by name, accepting any case style.
func Lookup(name string) (Scenario, error) {
	n := NormalizeName(name)
	for _, s := range registry {
		if s.Name == n {
			return s, nil
		}
	}

	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Select resolves names to scenarios, keeping their order. No names selects
// every scenario.
func Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return Scenarios(), nil
	}

	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, err := Lookup(name)
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	return out, nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrViolation, fmt.Sprintf(format, args...))
}
