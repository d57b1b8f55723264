package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mediamill/internal/events"
)

// HealthState mirrors the /healthz response plus connectivity.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	QueueDepth    int
	Connected     bool
	LastCheck     time.Time
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health   HealthState
	jobs     map[string]*JobState
	eventLog []events.Event
	now      time.Time

	jobTable table.Model
	theme    Theme

	hubEvents chan events.Event

	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Task", Width: 24},
			{Title: "ID", Width: 8},
			{Title: "Status", Width: 18},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		jobs:      make(map[string]*JobState),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		jobTable:  t,
		theme:     NewDefaultTheme(),
		now:       time.Now(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchJobs(m.apiURL, m.apiKey) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, func() tea.Msg { return fetchJobs(m.apiURL, m.apiKey) }
		}
		var cmd tea.Cmd
		m.jobTable, cmd = m.jobTable.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.now = time.Time(msg)
		m.jobTable.SetRows(jobRows(m.jobs, m.theme, m.now))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}

		applyEvent(m.jobs, e)
		m.jobTable.SetRows(jobRows(m.jobs, m.theme, m.now))

		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case jobsMsg:
		applySnapshot(m.jobs, msg.Jobs)
		m.jobTable.SetRows(jobRows(m.jobs, m.theme, m.now))

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.QueueDepth = msg.QueueDepth
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Connecting to mediamill..."
	}

	header := m.renderHeader()
	jobs := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("JOBS"),
			m.jobTable.View(),
		),
	)
	eventStream := m.renderEventStream()

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(" ⚠ " + m.lastError)
	}

	help := m.theme.Dim.Render(" [q] Quit • [r] Refresh • [↑/↓] Navigate")

	parts := []string{header, jobs, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m *Model) renderHeader() string {
	conn := m.theme.StatusFailed.Render("●")
	if m.health.Connected {
		conn = m.theme.StatusOK.Render("●")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	line := fmt.Sprintf("%s mediamill  depth:%d  up:%s",
		conn, m.health.QueueDepth, uptime.Truncate(time.Second))

	return m.theme.Border.Width(m.width - 4).Render(
		m.theme.Title.Render(line),
	)
}

func (m *Model) renderEventStream() string {
	if len(m.eventLog) == 0 {
		return m.theme.Border.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.theme.Title.Render("EVENTS"),
				m.theme.Dim.Render("  Waiting for events..."),
			),
		)
	}

	var lines []string
	for i, e := range m.eventLog {
		if i >= 8 {
			break
		}
		lines = append(lines, m.formatEvent(e))
	}

	return m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EVENTS"),
			lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
		),
	)
}

func (m *Model) formatEvent(e events.Event) string {
	ts := m.theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeJobFinished:
		typeStyle = m.theme.StatusOK
	case events.TypeJobFailed:
		typeStyle = m.theme.StatusFailed
	case events.TypeJobStarted:
		typeStyle = m.theme.StatusRunning
	default:
		typeStyle = m.theme.Dim
	}
	typeName := typeStyle.Render(fmt.Sprintf("%-14s", e.Type))

	detail := e.Task + " " + shortID(e.JobID)
	if e.ErrorKind != "" {
		detail += " [" + e.ErrorKind + "]"
	}

	return fmt.Sprintf("%s %s %s", ts, typeName, m.theme.Highlight.Render(detail))
}
