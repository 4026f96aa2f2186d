// Package boardview is the interactive board: cards are picked up with the
// keyboard and moved between slots, each step becoming one optimistic move
// on the board session.
package boardview

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/kb/internal/board"
	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/session"
)

// Board is the session surface the view drives. *session.Session satisfies it.
type Board interface {
	State() board.State
	Version() uint64
	Move(ev models.MoveEvent) *session.Pending
	Refresh(ctx context.Context) error
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// ChangeMsg carries a session change into the update loop.
type ChangeMsg session.Change

// TickMsg triggers a background refresh
type TickMsg time.Time

// outcomeMsg reports the settled result of one move.
type outcomeMsg session.Outcome

// refreshedMsg reports the result of a refresh.
type refreshedMsg struct {
	err error
	at  time.Time
}

// Model is the Bubble Tea model for the interactive board
type Model struct {
	board Board
	feed  *Feed
	ctx   context.Context
	title string

	state   board.State
	version uint64

	Width  int
	Height int

	col      int
	row      int
	grabbing bool
	inFlight int

	keys     keyMap
	help     help.Model
	Message  string
	Err      error
	LastSync time.Time

	// RefreshInterval of zero disables background refresh.
	RefreshInterval time.Duration
}

// NewModel creates a board view over b. feed must be the one registered with
// the session through session.WithOnChange(feed.Publish).
func NewModel(ctx context.Context, b Board, feed *Feed, title string, interval time.Duration) Model {
	return Model{
		board:           b,
		feed:            feed,
		ctx:             ctx,
		title:           title,
		state:           b.State(),
		version:         b.Version(),
		keys:            defaultKeyMap(),
		help:            help.New(),
		RefreshInterval: interval,
		LastSync:        time.Now(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.feed.next()}
	if m.RefreshInterval > 0 {
		cmds = append(cmds, m.scheduleTick())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case ChangeMsg:
		m.applyChange(session.Change(msg))
		return m, m.feed.next()

	case outcomeMsg:
		m.inFlight--
		if msg.Status == session.Failed {
			m.Err = msg.Err
			m.Message = ""
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.refresh(), m.scheduleTick())

	case refreshedMsg:
		if msg.err != nil {
			m.Err = msg.err
		} else {
			m.LastSync = msg.at
		}
		return m, nil
	}

	return m, nil
}

// applyChange shows c unless a newer state is already on screen.
func (m *Model) applyChange(c session.Change) {
	if c.Version <= m.version {
		return
	}
	m.state = c.State
	m.version = c.Version
	if c.Reason == session.ChangeRollback {
		m.grabbing = false
	}
	m.clampCursor()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.grabbing {
		return m.handleGrabKey(msg)
	}

	m.Message = ""
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Right):
		if m.col < len(m.state.Columns())-1 {
			m.col++
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.currentColumn())-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.Grab):
		if len(m.currentColumn()) > 0 {
			m.grabbing = true
			m.Err = nil
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// handleGrabKey turns each arrow press on a grabbed card into one move.
func (m Model) handleGrabKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.state.Columns()
	src := models.Location{Column: cols[m.col], Index: m.row}
	dest := src

	switch {
	case key.Matches(msg, m.keys.Drop), key.Matches(msg, m.keys.Grab):
		m.grabbing = false
		return m, nil
	case key.Matches(msg, m.keys.Left):
		if m.col == 0 {
			return m, nil
		}
		dest.Column = cols[m.col-1]
	case key.Matches(msg, m.keys.Right):
		if m.col >= len(cols)-1 {
			return m, nil
		}
		dest.Column = cols[m.col+1]
	case key.Matches(msg, m.keys.Up):
		if m.row == 0 {
			return m, nil
		}
		dest.Index--
	case key.Matches(msg, m.keys.Down):
		if m.row >= len(m.currentColumn())-1 {
			return m, nil
		}
		dest.Index++
	default:
		return m, nil
	}

	return m.move(src, dest)
}

// move applies one move through the session and follows the card.
func (m Model) move(src, dest models.Location) (tea.Model, tea.Cmd) {
	items := m.state.Column(src.Column)
	if src.Index >= len(items) {
		return m, nil
	}
	id := items[src.Index].ID

	p := m.board.Move(models.MoveEvent{Source: src, Destination: &dest})
	m.state = m.board.State()
	m.version = max(m.version, m.board.Version())
	m.follow(id)
	m.inFlight++
	return m, waitOutcome(m.ctx, p)
}

// follow puts the cursor on item id.
func (m *Model) follow(id string) {
	loc, ok := m.state.Locate(id)
	if !ok {
		m.clampCursor()
		return
	}
	for i, c := range m.state.Columns() {
		if c == loc.Column {
			m.col = i
		}
	}
	m.row = loc.Index
}

func (m *Model) clampCursor() {
	cols := m.state.Columns()
	if m.col >= len(cols) {
		m.col = max(len(cols)-1, 0)
	}
	n := len(m.currentColumn())
	if m.row >= n {
		m.row = max(n-1, 0)
	}
	if n == 0 {
		m.grabbing = false
	}
}

func (m Model) currentColumn() []models.Item {
	cols := m.state.Columns()
	if m.col >= len(cols) {
		return nil
	}
	return m.state.Column(cols[m.col])
}

// Selected returns the item under the cursor.
func (m Model) Selected() (models.Item, bool) {
	items := m.currentColumn()
	if m.row >= len(items) {
		return models.Item{}, false
	}
	return items[m.row], true
}

// Grabbing reports whether a card is picked up.
func (m Model) Grabbing() bool { return m.grabbing }

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		err := b.Refresh(ctx)
		return refreshedMsg{err: err, at: time.Now()}
	}
}

func waitOutcome(ctx context.Context, p *session.Pending) tea.Cmd {
	return func() tea.Msg {
		o, err := p.Wait(ctx)
		if err != nil {
			return outcomeMsg{Status: session.Failed, Err: err}
		}
		return outcomeMsg(o)
	}
}
