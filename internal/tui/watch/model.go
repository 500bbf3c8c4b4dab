// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch implements "roar watch", a live-updating terminal view of
// the active session's DAG: step list, per-step freshness badges, and
// running artifact counts. The model polls the session summary on a fixed
// tick and re-renders.
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noldarim/roar/internal/dag"
	"github.com/noldarim/roar/internal/store"
	"github.com/noldarim/roar/internal/store/jobs"
	"github.com/noldarim/roar/internal/store/sessions"
)

// PollInterval is how often the model re-reads the session summary.
const PollInterval = 1 * time.Second

type pollMsg struct{}

type dataMsg struct {
	summary    *sessions.Summary
	staleSteps map[int]bool
	err        error
}

// StepBadge classifies a step's freshness for display. A step is Stale when
// it, or any step it transitively depends on, last ran against an input
// artifact a later re-run has since overwritten; everything else is Fresh.
type StepBadge int

const (
	BadgeFresh StepBadge = iota
	BadgeStale
)

// Row is one rendered line of the step table.
type Row struct {
	StepNumber int
	Name       string
	Command    string
	Badge      StepBadge
	Outputs    int
}

// Model is the bubbletea model for "roar watch".
type Model struct {
	dag         *dag.Service
	sessions    *sessions.Repository
	jobs        *jobs.Repository
	sessionID   uint
	width       int
	height      int
	rows        []Row
	sessionHash string
	gitWarning  string
	lastErr     error
	quitting    bool
	spin        spinner.Model
	ctx         context.Context
	cancel      context.CancelFunc
}

// New builds a watch model bound to one session's summary. When sessionID
// is zero, the model resolves the currently active session on each poll
// (so "roar watch" started before any job runs still picks the session up).
func New(dagSvc *dag.Service, sessionRepo *sessions.Repository, jobRepo *jobs.Repository, sessionID uint) Model {
	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	return Model{
		dag:       dagSvc,
		sessions:  sessionRepo,
		jobs:      jobRepo,
		sessionID: sessionID,
		spin:      sp,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollTick(), m.fetch(), m.spin.Tick)
}

func pollTick() tea.Cmd {
	return tea.Tick(PollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		sessionID := m.sessionID
		if sessionID == 0 {
			active, err := m.sessions.GetActive()
			if err != nil {
				return dataMsg{err: err}
			}
			if active == nil {
				return dataMsg{}
			}
			sessionID = active.ID
		}

		summary, err := m.sessions.GetSummary(sessionID)
		if err != nil || summary == nil {
			return dataMsg{err: err}
		}
		staleList, err := m.dag.GetStaleSteps(sessionID)
		if err != nil {
			return dataMsg{err: err}
		}
		stale := make(map[int]bool, len(staleList))
		for _, n := range staleList {
			stale[n] = true
		}
		return dataMsg{summary: summary, staleSteps: stale}
	}
}

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case pollMsg:
		return m, tea.Batch(m.fetch(), pollTick())

	case dataMsg:
		m = m.applyData(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) applyData(data dataMsg) Model {
	if data.err != nil {
		m.lastErr = data.err
		return m
	}
	if data.summary == nil {
		return m
	}
	m.sessionHash = data.summary.Hash
	m.gitWarning = data.summary.GitWarning
	m.rows = m.rowsFromSummary(data.summary, data.staleSteps)
	return m
}

func (m Model) rowsFromSummary(summary *sessions.Summary, stale map[int]bool) []Row {
	rows := make([]Row, 0, len(summary.Steps))
	for _, step := range summary.Steps {
		num := 0
		if step.StepNumber != nil {
			num = *step.StepNumber
		}
		badge := BadgeFresh
		if stale[num] {
			badge = BadgeStale
		}
		name := step.Command
		if step.StepName != nil && *step.StepName != "" {
			name = *step.StepName
		}
		rows = append(rows, Row{
			StepNumber: num,
			Name:       name,
			Command:    step.Command,
			Badge:      badge,
			Outputs:    m.countOutputs(step),
		})
	}
	return rows
}

// countOutputs returns how many artifacts a step produced on its most
// recent run.
func (m Model) countOutputs(step store.Job) int {
	if m.jobs == nil {
		return 0
	}
	outputs, err := m.jobs.GetOutputs(step.ID)
	if err != nil {
		return 0
	}
	return len(outputs)
}
