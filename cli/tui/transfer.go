package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	barPadding  = 2
	barMaxWidth = 60
)

// ProgressMsg reports chunk progress of a running transfer.
type ProgressMsg struct {
	Done  uint32
	Total uint32
}

// finishedMsg carries the transfer result into the model.
type finishedMsg struct {
	err error
}

type keyMap struct {
	Cancel key.Binding
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "cancel"),
	),
}

// TransferModel renders a single upload or download.
type TransferModel struct {
	title    string
	bar      progress.Model
	done     uint32
	total    uint32
	started  time.Time
	elapsed  time.Duration
	cancel   context.CancelFunc
	canceled bool
	finished bool
	err      error
	now      func() time.Time
}

// NewTransferModel creates a model. cancel is invoked when the user
// asks to stop; the model keeps running until the transfer reports back.
func NewTransferModel(title string, cancel context.CancelFunc) TransferModel {
	return TransferModel{
		title:   title,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		started: time.Now(),
		cancel:  cancel,
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m TransferModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-barPadding*2, barMaxWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Cancel) && !m.canceled {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case ProgressMsg:
		m.done, m.total = msg.Done, msg.Total
		return m, nil

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		m.elapsed = m.now().Sub(m.started)
		return m, tea.Quit
	}

	return m, nil
}

// Fraction returns the completed share of the transfer.
func (m TransferModel) Fraction() float64 {
	if m.total == 0 {
		if m.finished && m.err == nil {
			return 1
		}
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// Err returns the transfer error once finished.
func (m TransferModel) Err() error {
	return m.err
}

// View implements tea.Model.
func (m TransferModel) View() string {
	pad := strings.Repeat(" ", barPadding)

	var b strings.Builder
	b.WriteString(pad + TitleStyle.Render(m.title) + "\n")
	b.WriteString(pad + m.bar.ViewAs(m.Fraction()) + "\n")

	counter := fmt.Sprintf("%d/%d chunks", m.done, m.total)
	switch {
	case m.finished && m.err != nil:
		b.WriteString(pad + ErrorStyle.Render(counter+"  failed: "+m.err.Error()) + "\n")
	case m.finished:
		b.WriteString(pad + SuccessStyle.Render(fmt.Sprintf("%s  done in %s", counter, m.elapsed.Round(time.Millisecond))) + "\n")
	case m.canceled:
		b.WriteString(pad + MutedStyle.Render(counter+"  canceling...") + "\n")
	default:
		b.WriteString(pad + MutedStyle.Render(counter) + "\n")
		b.WriteString(HelpStyle.Render(pad+"Press q to cancel") + "\n")
	}
	return b.String()
}

// RunTransfer runs fn while drawing a progress bar on out.
// fn receives a context canceled when the user presses q, and a callback
// for chunk progress. The returned error is the one fn returned.
func RunTransfer(ctx context.Context, title string, in io.Reader, out io.Writer, fn func(ctx context.Context, progress func(done, total uint32)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewTransferModel(title, cancel), tea.WithInput(in), tea.WithOutput(out))

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, func(done, total uint32) {
			p.Send(ProgressMsg{Done: done, Total: total})
		})
		result <- err
		p.Send(finishedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return fmt.Errorf("progress display: %w", err)
	}
	return <-result
}
