package stress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/MacroPower/qsync/pkg/tracing"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario   string        `json:"scenario"           yaml:"scenario"`
	Error      string        `json:"error,omitempty"    yaml:"error,omitempty"`
	Elapsed    time.Duration `json:"-"                  yaml:"-"`
	ElapsedMS  float64       `json:"elapsed_ms"         yaml:"elapsed_ms"`
	OpsPerSec  float64       `json:"ops_per_sec"        yaml:"ops_per_sec"`
	Operations int64         `json:"operations"         yaml:"operations"`
	Goroutines int           `json:"goroutines"         yaml:"goroutines"`
	Passed     bool          `json:"passed"             yaml:"passed"`
}

// Report is the outcome of a run.
type Report struct {
	Started time.Time `json:"started" yaml:"started"`
	Results []Result  `json:"results" yaml:"results"`
	ID      uuid.UUID `json:"id"      yaml:"id"`
	Config  Config    `json:"config"  yaml:"config"`
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}

	return true
}

// Runner executes scenarios in order. Create instances with [NewRunner].
type Runner struct {
	logger *slog.Logger
	tracer tracing.Tracer
	subs   []func(any)
	cfg    Config
}

// NewRunner creates a [Runner] for cfg.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger,
		tracer: tracing.NewLoggingTracer(logger),
	}
}

// Subscribe registers f to receive the events of every later run.
func (r *Runner) Subscribe(f func(any)) {
	r.subs = append(r.subs, f)
}

func (r *Runner) broadcastEvent(evt any) {
	for _, sub := range r.subs {
		sub(evt)
	}
}

// Run executes the configured scenarios. The report covers every scenario
// that ran; the error aggregates every failure.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		ID:      uuid.New(),
		Started: time.Now(),
		Config:  r.cfg,
	}

	err := r.run(ctx, report)
	r.broadcastEvent(EventDone{Err: err})

	return report, err
}

func (r *Runner) run(ctx context.Context, report *Report) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	scenarios, err := Select(r.cfg.Scenarios)
	if err != nil {
		return err
	}

	log := r.logger.With(slog.String("run", report.ID.String()))
	log.Debug("starting run", slog.Int("scenarios", len(scenarios)))

	r.broadcastEvent(EventSetScenarioTotal(len(scenarios)))

	var merr error

	for _, s := range scenarios {
		if ctx.Err() != nil {
			merr = multierror.Append(merr, fmt.Errorf("run aborted: %w", ctx.Err()))

			break
		}

		r.broadcastEvent(EventRunningScenario(s.Name))

		res := r.runScenario(ctx, log, s)
		report.Results = append(report.Results, res)

		var scenarioErr error
		if !res.Passed {
			scenarioErr = fmt.Errorf("%s: %s", s.Name, res.Error)
			merr = multierror.Append(merr, scenarioErr)
		}

		r.broadcastEvent(EventFinishedScenario{Scenario: s.Name, Err: scenarioErr})
	}

	return merr
}

func (r *Runner) runScenario(ctx context.Context, log *slog.Logger, s Scenario) Result {
	span := r.tracer.StartSpan(s.Name)
	defer span.Finish()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	log.Debug("running scenario", slog.String("scenario", s.Name))

	start := time.Now()
	ops, err := s.Run(ctx, r.cfg)
	elapsed := time.Since(start)

	res := Result{
		Scenario:   s.Name,
		Goroutines: r.cfg.Goroutines,
		Operations: ops,
		Elapsed:    elapsed,
		ElapsedMS:  float64(elapsed.Microseconds()) / 1e3,
		Passed:     err == nil,
	}

	if secs := elapsed.Seconds(); secs > 0 {
		res.OpsPerSec = float64(ops) / secs
	}

	if err != nil {
		res.Error = err.Error()
		log.Debug("scenario failed", slog.String("scenario", s.Name), slog.Any("err", err))
	}

	span.SetBaggageItem("operations", ops)
	span.SetBaggageItem("passed", res.Passed)

	return res
}
