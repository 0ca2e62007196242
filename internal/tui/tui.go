package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/client"
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
)

// Submitter accepts local actions; *client.Session implements it
type Submitter interface {
	Submit(a game.Action) error
}

// eventMsg carries one session event into the bubbletea loop
type eventMsg client.Event

// sessionClosedMsg is sent once the session's event stream ends
type sessionClosedMsg struct{}

// Model is the Bubble Tea model for one participant's table view
type Model struct {
	session Submitter
	events  <-chan client.Event
	logger  *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog     []string
	quitting    bool
	focusedPane int // 0 = log, 1 = input
	closed      bool

	// Table state, rebuilt from session events
	local    game.Player
	room     protocol.RoomData
	state    game.State
	hasState bool

	// Dimensions
	width       int
	height      int
	initialized bool

	// Test mode
	testMode    bool
	capturedLog []string
}

// New creates a table view fed by events and sending input to session
func New(session Submitter, events <-chan client.Event, logger *log.Logger) *Model {
	return NewWithOptions(session, events, logger, false)
}

// NewWithOptions creates a table view with test mode option. In test mode
// log entries are captured for assertions instead of being rendered.
func NewWithOptions(session Submitter, events <-chan client.Event, logger *log.Logger, testMode bool) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "draw, play 8H, play 5H 5S, suit S, pass, end"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &Model{
		session:     session,
		events:      events,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		gameLog:     []string{},
		focusedPane: 1,
		testMode:    testMode,
		capturedLog: []string{},
	}
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// listen waits for the next session event
func (m *Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return sessionClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case eventMsg:
		m.HandleEvent(client.Event(msg))
		cmds = append(cmds, m.listen())

	case sessionClosedMsg:
		if !m.closed {
			m.closed = true
			m.AddLogEntry(WarningStyle.Render("Disconnected from the match."))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if m.ProcessInput(input) {
					m.quitting = true
					return m, tea.Sequence(tea.ClearScreen, tea.Quit)
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// ProcessInput handles one line typed by the player. It reports whether
// the player asked to quit.
func (m *Model) ProcessInput(input string) bool {
	a, err := parseCommand(input)
	switch {
	case errors.Is(err, errQuit):
		return true
	case errors.Is(err, errHelp):
		m.AddLogEntry(InfoStyle.Render("Commands: " + helpText))
		return false
	case err != nil:
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
		return false
	}

	if err := m.session.Submit(a); err != nil {
		m.AddLogEntry(ErrorStyle.Render("Could not send move: " + err.Error()))
	}
	return false
}

// HandleEvent folds a session event into the view
func (m *Model) HandleEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventSeated:
		m.local = ev.Player
		m.AddLogEntry(SuccessStyle.Render(fmt.Sprintf("Joined room %s as %s", ev.Text, ev.Player)))

	case client.EventRoom:
		m.room = ev.Room
		if ev.Room.Full() {
			m.AddLogEntry(InfoStyle.Render("Both players are here."))
		} else {
			m.AddLogEntry(InfoStyle.Render(fmt.Sprintf("Waiting for an opponent. Share room code %s", ev.Room.Room)))
		}

	case client.EventState:
		prev, had := m.state, m.hasState
		m.state, m.hasState = ev.State, true
		if entry := describeChange(prev, had, ev.State, m.local); entry != "" {
			m.AddLogEntry(entry)
		}

	case client.EventRejected:
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("%s rejected: %v", ev.Action.Type, ev.Err)))

	case client.EventNotice:
		text := ev.Text
		if ev.Err != nil {
			text = fmt.Sprintf("%s (%v)", text, ev.Err)
		}
		m.AddLogEntry(WarningStyle.Render(text))

	case client.EventGameOver:
		m.state, m.hasState = ev.State, true
		switch ev.Player {
		case game.NoPlayer:
			m.AddLogEntry(WarningStyle.Render("The match was abandoned."))
		case m.local:
			m.AddLogEntry(SuccessStyle.Render("You win!"))
		default:
			m.AddLogEntry(ErrorStyle.Render(ev.Player.String() + " wins."))
		}
	}
}

// describeChange returns a log line for the transition from prev to next
func describeChange(prev game.State, had bool, next game.State, me game.Player) string {
	if !had || next.Version == 1 {
		top, _ := next.Top()
		return HeaderStyle.Render(fmt.Sprintf(" New match. Starting card %s ", top.Pretty()))
	}

	who := "You"
	if prev.Turn != me {
		who = prev.Turn.String()
	}

	switch {
	case len(next.PlayedPile) > len(prev.PlayedPile):
		played := next.PlayedPile[len(prev.PlayedPile):]
		return fmt.Sprintf("%s played %s", who, formatCards(played))
	case next.ChosenSuit != nil && prev.ChosenSuit == nil:
		return fmt.Sprintf("%s chose %s", who, next.ChosenSuit.Symbol())
	case next.Reshuffles > prev.Reshuffles:
		return InfoStyle.Render("The played pile was reshuffled into the draw pile.")
	case len(next.Hand(prev.Turn)) > len(prev.Hand(prev.Turn)):
		if prev.Turn == me {
			drawn := next.Hand(me)[len(prev.Hand(me)):]
			return fmt.Sprintf("You drew %s", formatCards(drawn))
		}
		return fmt.Sprintf("%s drew a card", who)
	case next.Phase == game.PhaseIllegalCard:
		return ErrorStyle.Render(fmt.Sprintf("%s tried a card that does not match", who))
	case next.Phase == game.PhasePassTurn:
		return fmt.Sprintf("%s could not play and passes", who)
	case next.Turn != prev.Turn:
		return InfoStyle.Render(fmt.Sprintf("Turn passes to %s", next.Turn))
	}
	return ""
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight-2, 1))
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 25)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight

	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebarPane shows the table: players, top card and pile sizes
func (m *Model) renderSidebarPane() string {
	var content strings.Builder

	if m.room.Room != "" {
		content.WriteString(HeaderStyle.Render(" Room " + m.room.Room + " "))
		content.WriteString("\n\n")
	}
	for _, u := range m.room.Users {
		marker := "  "
		if m.hasState && m.state.Turn == u.Player && !m.state.GameOver {
			marker = "▶ "
		}
		line := fmt.Sprintf("%s%s (%s)", marker, u.Name, u.Player)
		if m.hasState {
			line += fmt.Sprintf(": %d cards", len(m.state.Hand(u.Player)))
		}
		content.WriteString(line + "\n")
	}

	if !m.hasState {
		content.WriteString("\n" + InfoStyle.Render("Waiting for the deal..."))
		return content.String()
	}

	top, _ := m.state.Top()
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Top card:  %s\n", formatCard(top)))
	content.WriteString(fmt.Sprintf("Suit:      %s\n", suitLabel(m.state.ActiveSuit)))
	content.WriteString(fmt.Sprintf("Draw pile: %d\n", len(m.state.DrawPile)))
	content.WriteString(fmt.Sprintf("Played:    %d\n", len(m.state.PlayedPile)))
	content.WriteString(InfoStyle.Render(fmt.Sprintf("Phase: %s", m.state.Phase)))
	return content.String()
}

// renderActionPane shows the local hand, a hint and the input line
func (m *Model) renderActionPane() string {
	var content strings.Builder

	if m.hasState && m.local != game.NoPlayer {
		content.WriteString(HandInfoStyle.Render("Hand: "))
		content.WriteString(formatCards(m.state.Hand(m.local)))
		content.WriteString("\n")
		content.WriteString(ActionsStyle.Render(hint(m.state, m.local)))
		content.WriteString("\n")
	} else {
		content.WriteString(HandInfoStyle.Render("Waiting..."))
		content.WriteString("\n")
	}

	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"))
	} else {
		content.WriteString(InfoStyle.Render("Tab to scroll log • Enter to submit • help for commands • Ctrl+C to quit"))
	}
	return content.String()
}

func formatCard(c deck.Card) string {
	switch {
	case c.IsWild():
		return WildCardStyle.Render(c.Pretty())
	case c.IsRed():
		return RedCardStyle.Render(c.Pretty())
	default:
		return BlackCardStyle.Render(c.Pretty())
	}
}

// formatCards formats cards with colors
func formatCards(cards []deck.Card) string {
	if len(cards) == 0 {
		return "[]"
	}
	formatted := make([]string, len(cards))
	for i, c := range cards {
		formatted[i] = formatCard(c)
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

func suitLabel(s deck.Suit) string {
	if s.IsRed() {
		return RedCardStyle.Render(s.Symbol())
	}
	return BlackCardStyle.Render(s.Symbol())
}

// AddLogEntry adds an entry to the game log
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)

	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return
	}

	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *Model) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// IsTestMode returns whether the TUI is in test mode
func (m *Model) IsTestMode() bool {
	return m.testMode
}

// State returns the last game state shown
func (m *Model) State() (game.State, bool) {
	return m.state, m.hasState
}
