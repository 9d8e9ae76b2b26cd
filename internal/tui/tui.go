// Package tui provides the interactive estimation session behind
// "slurmslim chat": a prompt that accepts job-script paths and a
// scrollback of estimation results.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"

	"github.com/JianYang-Lab/SlurmSlim/internal/estimate"
	"github.com/JianYang-Lab/SlurmSlim/internal/slurm"
)

// Config holds the parameters needed to launch the session.
type Config struct {
	// Run executes the estimation pipeline for one job script.
	Run func(ctx context.Context, script string) (estimate.Result, error)

	Slurm   slurm.Options // sbatch rendering policy
	Model   string        // model identifier shown in the status bar
	Timeout time.Duration // per-round deadline, 0 = none
}

// entry is one completed estimation round.
type entry struct {
	script  string
	result  *estimate.Result
	err     error
	elapsed time.Duration
}

// Model is the root session model.
type Model struct {
	cfg      Config
	input    textinput.Model
	history  viewport.Model
	spin     spinner.Model
	entries  []entry
	running  bool
	runPath  string
	bar      statusBar
	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a new session model.
func New(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "path to job script..."
	ti.CharLimit = 256
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stylePrompt

	return Model{
		cfg:   cfg,
		input: ti,
		spin:  sp,
		bar:   newStatusBar(cfg.Model),
	}
}

// Init starts the cursor blink.
func (m Model) Init() bubbletea.Cmd {
	return textinput.Blink
}

// Update processes messages.
func (m Model) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, bubbletea.Quit

		case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down),
			key.Matches(msg, keys.PageUp), key.Matches(msg, keys.PageDown):
			var cmd bubbletea.Cmd
			m.history, cmd = m.history.Update(msg)
			return m, cmd

		case key.Matches(msg, keys.Submit):
			script := strings.TrimSpace(m.input.Value())
			if m.running || script == "" {
				return m, nil
			}
			m.running = true
			m.runPath = script
			m.input.Reset()
			return m, bubbletea.Batch(m.spin.Tick, runEstimate(m.cfg, script))
		}

	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.width = msg.Width
		historyHeight := msg.Height - 2 // input line + statusbar
		if historyHeight < 1 {
			historyHeight = 1
		}
		if !m.ready {
			m.history = viewport.New(msg.Width, historyHeight)
			m.ready = true
		} else {
			m.history.Width = msg.Width
			m.history.Height = historyHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshHistory()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case estimateResultMsg:
		m.running = false
		m.runPath = ""
		e := entry{script: msg.script, err: msg.err, elapsed: msg.elapsed}
		if msg.err == nil {
			res := msg.result
			e.result = &res
		}
		m.entries = append(m.entries, e)
		m.refreshHistory()
		m.history.GotoBottom()
		return m, nil
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the session.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return styleDim.Render("  starting...")
	}

	var b strings.Builder
	b.WriteString(m.history.View())
	b.WriteByte('\n')

	if m.running {
		b.WriteString(fmt.Sprintf("%s Estimating %s...", m.spin.View(), m.runPath))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteByte('\n')

	b.WriteString(m.bar.render("enter: estimate  pgup/pgdn: scroll  esc: quit"))
	return b.String()
}

func (m *Model) refreshHistory() {
	if !m.ready {
		return
	}
	m.history.SetContent(m.renderHistory())
}

func (m Model) renderHistory() string {
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(styleTitle.Render("  SlurmSlim"))
	b.WriteByte('\n')

	if len(m.entries) == 0 {
		b.WriteString(styleDim.Render("  Enter a job-script path to estimate its peak memory."))
		b.WriteByte('\n')
		return b.String()
	}

	for _, e := range m.entries {
		b.WriteByte('\n')
		b.WriteString(stylePrompt.Render("> " + e.script))
		b.WriteByte('\n')

		if e.err != nil {
			b.WriteString(styleError.Render("  Error: " + e.err.Error()))
			b.WriteByte('\n')
			b.WriteString(styleDim.Render(fmt.Sprintf("  %.1fs", e.elapsed.Seconds())))
			b.WriteByte('\n')
			continue
		}

		res := e.result
		b.WriteString("  Estimated Memory: " + styleResult.Render(res.Estimate.String()))
		b.WriteByte('\n')
		b.WriteString("  Suggested Slurm Command: " +
			slurm.Command(res.Estimate.Bytes, e.script, m.cfg.Slurm))
		b.WriteByte('\n')
		if len(res.Files) > 0 {
			b.WriteString(styleDim.Render(fmt.Sprintf("  %d files sized, %.1fs",
				len(res.Files), e.elapsed.Seconds())))
		} else {
			b.WriteString(styleDim.Render(fmt.Sprintf("  %.1fs", e.elapsed.Seconds())))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// runEstimate executes one pipeline round off the UI goroutine.
func runEstimate(cfg Config, script string) bubbletea.Cmd {
	return func() bubbletea.Msg {
		ctx := context.Background()
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := cfg.Run(ctx, script)
		return estimateResultMsg{script: script, result: res, err: err, elapsed: time.Since(start)}
	}
}
