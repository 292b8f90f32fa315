package stresstui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MacroPower/qsync/pkg/log"
	"github.com/MacroPower/qsync/pkg/stress"
)

var ErrCancelled = errors.New("run cancelled")

// Runner runs a stress run and publishes its events.
// See [stress.Runner] for an implementation.
type Runner interface {
	Run(ctx context.Context) (*stress.Report, error)
	Subscribe(f func(any))
}

// StressTUI drives a [Runner] while displaying its progress. Log records
// written through [StressTUI.Logger] during the run are printed above the
// progress display.
type StressTUI struct {
	p      *tea.Program
	w      io.Writer
	logger *slog.Logger
	opts   []tea.ProgramOption
}

// NewStressTUI creates a [StressTUI] writing to w. Additional program
// options, such as input, are passed to Bubble Tea.
func NewStressTUI(w io.Writer, logLevel string, opts ...tea.ProgramOption) (*StressTUI, error) {
	c := &StressTUI{
		w:    w,
		opts: opts,
	}

	h, err := log.CreateHandler(c, logLevel, string(log.FormatText))
	if err != nil {
		return nil, fmt.Errorf("failed to create log handler: %w", err)
	}

	c.logger = slog.New(h)

	return c, nil
}

// Logger returns a logger whose output is routed through the TUI.
func (c *StressTUI) Logger() *slog.Logger {
	return c.logger
}

func (c *StressTUI) broadcastEvent(evt any) {
	if c.p != nil {
		c.p.Send(evt)
	}
}

func (c *StressTUI) Write(p []byte) (int, error) {
	c.broadcastEvent(teaMsgWriteLog(string(p)))

	return len(p), nil
}

// Run executes runner under the TUI. Quitting the TUI cancels the run and
// returns an error wrapping [ErrCancelled].
func (c *StressTUI) Run(ctx context.Context, runner Runner) (*stress.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel()

	opts := append([]tea.ProgramOption{tea.WithOutput(c.w), tea.WithContext(ctx)}, c.opts...)
	c.p = tea.NewProgram(m, opts...)

	runner.Subscribe(c.broadcastEvent)

	type outcome struct {
		report *stress.Report
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		report, err := runner.Run(ctx)
		done <- outcome{report, err}
	}()

	_, err := c.p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-done

		return nil, fmt.Errorf("failed to launch tui: %w", err)
	}

	if m.Cancelled() {
		cancel()
		res := <-done

		return res.report, ErrCancelled
	}

	res := <-done

	return res.report, res.err
}
