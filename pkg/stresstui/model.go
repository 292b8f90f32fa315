package stresstui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MacroPower/qsync/pkg/locks"
	"github.com/MacroPower/qsync/pkg/stress"
)

// Model displays the progress of a stress run. Create instances with
// [NewModel].
type Model struct {
	err       error
	mu        *locks.ReentrantRWLock
	started   []string
	finished  []string
	failed    []string
	spinner   spinner.Model
	progress  progress.Model
	total     int
	width     int
	height    int
	done      bool
	cancelled bool
}

// NewModel creates a new [Model].
func NewModel() *Model {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Style = spinnerStyle

	return &Model{
		mu:       locks.NewReentrantRWLock(false),
		started:  []string{},
		finished: []string{},
		failed:   []string{},
		spinner:  s,
		progress: p,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.setPercent(0))
}

// setPercent updates the progress bar through a copy. The frame command
// keeps a pointer to the model it was created from, so that model must not
// be written again once the command is running.
func (m *Model) setPercent(p float64) tea.Cmd {
	prog := m.progress
	cmd := prog.SetPercent(p)
	m.progress = prog

	return cmd
}

// Cancelled reports whether the user quit before the run finished.
func (m *Model) Cancelled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cancelled
}

//nolint:ireturn // Third-party.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		if keyExits(msg) {
			m.mu.Lock()
			defer m.mu.Unlock()

			m.cancelled = true

			return m, tea.Quit
		}

	case teaMsgWriteLog:
		m.mu.RLock()
		defer m.mu.RUnlock()

		return m, writeLog(msg, m.width)

	case stress.EventSetScenarioTotal:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.total = int(msg)

	case stress.EventRunningScenario:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.started = append(m.started, string(msg))

	case stress.EventFinishedScenario:
		m.mu.Lock()
		defer m.mu.Unlock()

		icon := checkMark
		if msg.Err != nil {
			m.failed = append(m.failed, msg.Scenario)
			icon = errorMark
		}

		m.finished = append(m.finished, msg.Scenario)

		return m, tea.Batch(
			m.setPercent(float64(len(m.finished))/float64(max(1, m.total))),
			tea.Printf("%s %s", icon, msg.Scenario),
		)

	case stress.EventDone:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.done = true
		m.err = msg.Err

		return m, tea.Sequence(finalPause(), tea.Quit)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case progress.FrameMsg:
		newModel, cmd := m.progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.progress = newModel
		}

		return m, cmd
	}

	return m, nil
}

func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.done {
		if m.err != nil {
			return getErrorMessage(
				fmt.Errorf("%d of %d scenarios failed", len(m.failed), len(m.finished)),
				m.width,
			)
		}

		return doneStyle.Render(fmt.Sprintf("Done! Ran %d scenarios.\n", len(m.finished)))
	}

	w := lipgloss.Width(strconv.Itoa(m.total))
	count := fmt.Sprintf(" %*d/%*d", w, len(m.finished), w, m.total)

	progRendered := progressStyle.Render(m.progress.View() + count)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(progRendered)))
	progOut := progRendered + gap + "\n"

	spinners := []string{}
	for _, name := range differenceStringSlices(m.started, m.finished) {
		spin := m.spinner.View() + " "
		cellsAvail := max(0, m.width-lipgloss.Width(spin))

		info := lipgloss.NewStyle().MaxWidth(cellsAvail).Render("Running " + currentNameStyle.Render(name))

		cellsRemaining := max(0, m.width-lipgloss.Width(spin+info))
		spinners = append(spinners, spin+info+strings.Repeat(" ", cellsRemaining))
	}

	return strings.Join(spinners, "\n") + "\n" + progOut
}

func differenceStringSlices(a, b []string) []string {
	difference := []string{}

	for _, x := range a {
		if !slices.Contains(b, x) {
			difference = append(difference, x)
		}
	}

	return difference
}
