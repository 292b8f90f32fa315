package stresstui_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MacroPower/qsync/pkg/stress"
	"github.com/MacroPower/qsync/pkg/stresstui"
)

func TestModel_Success(t *testing.T) {
	t.Parallel()

	m := stresstui.NewModel()
	tm := teatest.NewTestModel(
		t, m,
		teatest.WithInitialTermSize(300, 100),
	)

	tm.Send(stress.EventSetScenarioTotal(2))
	tm.Send(stress.EventRunningScenario("mutex"))

	teatest.WaitFor(
		t, tm.Output(),
		func(bts []byte) bool {
			return bytes.Contains(bts, []byte("Running")) && bytes.Contains(bts, []byte("mutex"))
		},
		teatest.WithDuration(5*time.Second),
	)

	tm.Send(stress.EventFinishedScenario{Scenario: "mutex"})

	teatest.WaitFor(
		t, tm.Output(),
		func(bts []byte) bool {
			return bytes.Contains(bts, []byte("✓ mutex"))
		},
		teatest.WithDuration(5*time.Second),
	)

	tm.Send(stress.EventRunningScenario("latch"))
	tm.Send(stress.EventFinishedScenario{Scenario: "latch"})
	tm.Send(stress.EventDone{})

	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(5*time.Second)))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Done! Ran 2 scenarios.")
	assert.False(t, m.Cancelled())
}

func TestModel_Failure(t *testing.T) {
	t.Parallel()

	m := stresstui.NewModel()
	tm := teatest.NewTestModel(
		t, m,
		teatest.WithInitialTermSize(300, 100),
	)

	tm.Send(stress.EventSetScenarioTotal(1))
	tm.Send(stress.EventRunningScenario("barrier"))
	tm.Send(stress.EventFinishedScenario{Scenario: "barrier", Err: errors.New("broken")})

	teatest.WaitFor(
		t, tm.Output(),
		func(bts []byte) bool {
			return bytes.Contains(bts, []byte("✗ barrier"))
		},
		teatest.WithDuration(5*time.Second),
	)

	tm.Send(stress.EventDone{Err: errors.New("1 scenario failed")})

	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(5*time.Second)))
	require.NoError(t, err)
	assert.Contains(t, string(out), "1 of 1 scenarios failed")
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()

	m := stresstui.NewModel()
	tm := teatest.NewTestModel(
		t, m,
		teatest.WithInitialTermSize(300, 100),
	)

	tm.Send(stress.EventSetScenarioTotal(3))
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	tm.WaitFinished(t, teatest.WithFinalTimeout(5*time.Second))
	assert.True(t, m.Cancelled())
}

func TestModel_ProgressFramesDoNotShareState(t *testing.T) {
	t.Parallel()

	m := stresstui.NewModel()
	m.Update(stress.EventSetScenarioTotal(2))

	_, cmd := m.Update(stress.EventFinishedScenario{Scenario: "mutex"})
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)

	msgs := make(chan tea.Msg, len(batch))
	for _, c := range batch {
		go func() { msgs <- c() }()
	}

	// Keep updating the progress bar while the frame commands are pending.
	m.Update(stress.EventFinishedScenario{Scenario: "latch"})
	m.Update(stress.EventSetScenarioTotal(3))

	var frames int
	for range batch {
		if _, ok := (<-msgs).(progress.FrameMsg); ok {
			frames++
		}
	}

	assert.Equal(t, 1, frames)
}
