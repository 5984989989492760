package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"turbodelete/internal/engine"
)

const (
	tickInterval = 80 * time.Millisecond
	maxBarWidth  = 60
)

type tickMsg time.Time

// finishMsg ends the program after one last render of the final count
type finishMsg struct{}

// progressModel polls an engine counter; removal goroutines never talk to
// the program directly
type progressModel struct {
	counter *engine.Progress
	bar     progress.Model
	done    bool
}

func newProgressModel(counter *engine.Progress) progressModel {
	return progressModel{
		counter: counter,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m progressModel) Init() tea.Cmd {
	return tick()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-24, 10), maxBarWidth)
		return m, nil
	case finishMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m progressModel) View() string {
	done, total := m.counter.Done(), m.counter.Total()
	return fmt.Sprintf("%s %d/%d\n", m.bar.ViewAs(fraction(done, total)), done, total)
}

func fraction(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(done)/float64(total), 1)
}
