// Package tui provides the Bubble Tea study interface.
package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/verte-zerg/cardbox/internal/model"
	"github.com/verte-zerg/cardbox/internal/study"
)

// CardService fetches cards and submits grades.
type CardService interface {
	NextCard(ctx context.Context, boxID int64) (model.CardPayload, error)
	SubmitGrade(ctx context.Context, gradeURL, cardID string, correct bool) error
}

// Options configures a study model.
type Options struct {
	Session   string
	BoxID     int64
	Timeout   time.Duration
	ShowStack bool
	Study     study.Config
}

type fetchedMsg struct {
	ticket study.Ticket
	card   model.CardPayload
	err    error
}

type gradedMsg struct {
	ticket study.Ticket
	err    error
}

// fetchDueMsg starts a fetch whose retry delay has elapsed.
type fetchDueMsg struct {
	ticket study.Ticket
}

// quitTimeoutMsg ends the wait for pending grades on quit.
type quitTimeoutMsg struct{}

// quitGrace is added to the request timeout while waiting for pending grades.
const quitGrace = time.Second

// Model implements the Bubble Tea study UI. It is the renderer, fetcher and
// grader of its controller; all controller calls happen inside Update.
type Model struct {
	opts    Options
	service CardService
	ctrl    *study.Controller

	// pending collects commands issued by the controller during one Update.
	pending []tea.Cmd

	card *model.CardPayload
	side study.Side

	quitting bool

	spinner spinner.Model
	help    help.Model
	quit    key.Binding

	width  int
	height int
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	frontStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	backStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8D8A8"))
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Padding(1, 3)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a study model backed by service.
func NewModel(service CardService, opts Options) *Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	m := &Model{
		opts:    opts,
		service: service,
		spinner: spin,
		help:    help.New(),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	m.ctrl = study.NewController(opts.Session, opts.Study, m, m, m)
	return m
}

// Controller returns the session controller.
func (m *Model) Controller() *study.Controller {
	return m.ctrl
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.ctrl.Update()
	return tea.Batch(m.spinner.Tick, m.flush())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		combo := normalizeKey(msg)
		if key.Matches(msg, m.quit) {
			return m, m.quitSession()
		}
		if combo == "?" {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		m.ctrl.Keys().Dispatch(combo)
		return m, m.flush()
	case fetchDueMsg:
		if m.ctrl.Alive() && !m.quitting {
			m.pending = append(m.pending, m.fetchCmd(msg.ticket))
		}
		return m, m.flush()
	case fetchedMsg:
		if msg.err != nil && m.ctrl.Alive() {
			log.Printf("[study] fetch failed: %v", msg.err)
		}
		m.ctrl.Fetched(msg.ticket, msg.card, msg.err)
		return m, m.flush()
	case gradedMsg:
		if msg.err != nil && m.ctrl.Alive() {
			log.Printf("[study] grade failed: %v", msg.err)
		}
		m.ctrl.Graded(msg.ticket, msg.err)
		if m.quitting && m.ctrl.PendingGrades() == 0 {
			m.ctrl.Close()
			return m, tea.Quit
		}
		return m, m.flush()
	case quitTimeoutMsg:
		if !m.quitting {
			return m, nil
		}
		m.ctrl.Close()
		return m, tea.Quit
	case spinner.TickMsg:
		if m.card != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

// quitSession quits once pending grade submissions have settled, so their
// failures still reach the session summary. A second quit key or the grace
// timeout quits without them.
func (m *Model) quitSession() tea.Cmd {
	if m.quitting || m.ctrl.PendingGrades() == 0 {
		m.ctrl.Close()
		return tea.Quit
	}
	m.quitting = true
	m.ctrl.Stop()
	log.Printf("[study] waiting for %s before quitting", english.Plural(m.ctrl.PendingGrades(), "grade", ""))
	m.pending = append(m.pending, tea.Tick(m.opts.Timeout+quitGrace, func(time.Time) tea.Msg {
		return quitTimeoutMsg{}
	}))
	return m.flush()
}

// RequestNext implements study.Fetcher.
func (m *Model) RequestNext(t study.Ticket) {
	if t.Delay > 0 {
		m.pending = append(m.pending, tea.Tick(t.Delay, func(time.Time) tea.Msg {
			return fetchDueMsg{ticket: t}
		}))
		return
	}
	m.pending = append(m.pending, m.fetchCmd(t))
}

// Submit implements study.Grader.
func (m *Model) Submit(t study.Ticket, card model.CardPayload, correct bool) {
	service, timeout := m.service, m.opts.Timeout
	m.pending = append(m.pending, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return gradedMsg{ticket: t, err: service.SubmitGrade(ctx, card.GradeURL, card.ID, correct)}
	})
}

// Render implements study.Renderer.
func (m *Model) Render(card model.CardPayload, side study.Side) {
	m.card = &card
	m.side = side
}

// Clear implements study.Renderer.
func (m *Model) Clear() {
	wasShowing := m.card != nil
	m.card = nil
	if wasShowing && m.ctrl.Alive() {
		m.pending = append(m.pending, m.spinner.Tick)
	}
}

func (m *Model) fetchCmd(t study.Ticket) tea.Cmd {
	service, boxID, timeout := m.service, m.opts.BoxID, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		card, err := service.NextCard(ctx, boxID)
		return fetchedMsg{ticket: t, card: card, err: err}
	}
}

func (m *Model) flush() tea.Cmd {
	cmds := m.pending
	m.pending = nil
	return tea.Batch(cmds...)
}

// normalizeKey maps a key event to the combination names used by bindings.
func normalizeKey(msg tea.KeyMsg) string {
	if msg.Type == tea.KeySpace || msg.String() == " " {
		return "space"
	}
	return msg.String()
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	if m.card == nil {
		body = m.renderWaiting()
	} else {
		body = m.renderCard()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return body + "\n\n" + footer
	}
	footerHeight := lipgloss.Height(footer)
	bodyHeight := m.height - footerHeight
	if bodyHeight < 1 {
		return body
	}
	return lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body) + "\n" +
		lipgloss.PlaceHorizontal(m.width, lipgloss.Center, footer)
}

func (m *Model) renderWaiting() string {
	if m.quitting {
		return fmt.Sprintf("%s Saving %s…", m.spinner.View(), english.Plural(m.ctrl.PendingGrades(), "pending grade", ""))
	}
	msg := fmt.Sprintf("%s Waiting for cards…", m.spinner.View())
	if err := m.ctrl.LastFetchError(); err != nil {
		msg += "\n" + errorStyle.Render(fmt.Sprintf("last fetch failed: %v (retrying)", err))
	}
	return msg
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 60
	}
	width := int(float64(m.width) * 0.70)
	if width < 10 {
		width = 10
	}
	return width
}

func (m *Model) renderCard() string {
	card := m.card
	width := m.contentWidth()

	var b strings.Builder
	b.WriteString(titleStyle.Render(card.Box.Title))
	b.WriteString(infoStyle.Render(fmt.Sprintf("  %.1f%% learned (%d/%d)", card.Box.PercentLearned, card.Box.Learned, card.Box.Cards)))
	b.WriteString("\n\n")

	sides := frontStyle.Render(strings.Join(wrapLines(card.Front, width), "\n"))
	if m.side == study.Back {
		divider := infoStyle.Render(strings.Repeat("─", minInt(width, 24)))
		sides += "\n" + divider + "\n" + backStyle.Render(strings.Join(wrapLines(card.Back, width), "\n"))
	}
	b.WriteString(cardStyle.Render(sides))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(cardInfo(card.Info, time.Now())))
	return b.String()
}

func cardInfo(info model.CardInfo, now time.Time) string {
	segments := []string{
		fmt.Sprintf("interval %d/%d", info.Interval, model.NumIntervals),
		fmt.Sprintf("%d correct · %d wrong", info.Correct, info.Wrong),
	}
	if info.LearnedUntil.After(now) {
		segments = append(segments, "learned until "+humanize.RelTime(info.LearnedUntil, now, "ago", "from now"))
	}
	return strings.Join(segments, "  ")
}

func (m *Model) renderFooter() string {
	lines := []string{m.help.View(m.keyMap())}
	var status []string
	if m.opts.ShowStack {
		status = append(status, stackIndicator(m.ctrl.Buffered(), m.ctrl.InFlight(), m.ctrl.Target()))
	}
	if err := m.ctrl.LastGradeError(); err != nil {
		status = append(status, errorStyle.Render(fmt.Sprintf("grade not saved: %v", err)))
	}
	if len(status) > 0 {
		lines = append(lines, strings.Join(status, "  "))
	}
	return footerStyle.Render(strings.Join(lines, "\n"))
}

// stackIndicator draws buffered cards as filled slots and in-flight fetches as pending ones.
func stackIndicator(buffered, inFlight, target int) string {
	var b strings.Builder
	b.WriteString("stack ")
	slots := target
	if buffered+inFlight > slots {
		slots = buffered + inFlight
	}
	for i := 0; i < slots; i++ {
		switch {
		case i < buffered:
			b.WriteRune('■')
		case i < buffered+inFlight:
			b.WriteRune('◌')
		default:
			b.WriteRune('□')
		}
	}
	fmt.Fprintf(&b, " %d/%d", buffered, target)
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
