package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/crazyeights/internal/bot"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
	"github.com/lox/crazyeights/internal/randutil"
	"github.com/lox/crazyeights/internal/replica"
)

var (
	// ErrRoomFull is returned by Run when the relay refused a seat
	ErrRoomFull = errors.New("room is full")

	// ErrPeerLeft is returned by Run when the opponent leaves mid-match
	ErrPeerLeft = errors.New("opponent left the match")

	// ErrDisconnected is returned by Run when the relay connection drops
	ErrDisconnected = errors.New("disconnected from relay")

	// ErrSessionClosed is returned by Submit once Run has returned
	ErrSessionClosed = errors.New("session closed")
)

// maxBotSteps bounds how many actions a bot takes without yielding
const maxBotSteps = 64

// Transport is the relay connection a Session plays over. *Client
// implements it.
type Transport interface {
	replica.Publisher
	Join(room, name string) error
	Incoming() <-chan *protocol.Message
}

// EventKind classifies session events
type EventKind int

const (
	EventSeated EventKind = iota
	EventRoom
	EventState
	EventRejected
	EventNotice
	EventGameOver
)

func (k EventKind) String() string {
	switch k {
	case EventSeated:
		return "seated"
	case EventRoom:
		return "room"
	case EventState:
		return "state"
	case EventRejected:
		return "rejected"
	case EventNotice:
		return "notice"
	case EventGameOver:
		return "game_over"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event reports something the UI may want to show. State always carries
// the latest local state once one exists.
type Event struct {
	Kind   EventKind
	Player game.Player
	Room   protocol.RoomData
	State  game.State
	Action game.Action
	Err    error
	Text   string
}

// SessionOptions configures a Session
type SessionOptions struct {
	Name string
	Room string
	// Seed fixes the deal when this participant is Player 1; 0 picks one.
	Seed int64
	// Strategy plays for the local participant; nil waits for Submit.
	Strategy   bot.Strategy
	ThinkDelay time.Duration
	Clock      quartz.Clock
	// ExitOnGameOver makes Run return nil once the match ends.
	ExitOnGameOver bool
}

// Session binds one replica to the relay. Run owns all game state: remote
// snapshots and local input are serialised through a single goroutine.
type Session struct {
	transport Transport
	opts      SessionOptions
	logger    *log.Logger
	clock     quartz.Clock

	actions chan game.Action
	events  chan Event
	done    chan struct{}

	rep          *replica.Replica
	room         protocol.RoomData
	endRequested bool
	finished     bool
	think        *quartz.Timer
}

// NewSession creates a session over t
func NewSession(t Transport, logger *log.Logger, opts SessionOptions) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Session{
		transport: t,
		opts:      opts,
		logger:    logger.WithPrefix("session"),
		clock:     clock,
		actions:   make(chan game.Action, 16),
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
}

// Events returns the stream of session events. It is closed when Run
// returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Submit queues a local action. The acting player is filled in by the
// session.
func (s *Session) Submit(a game.Action) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.actions <- a:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return fmt.Errorf("input queue full")
	}
}

// State returns the latest local state. It must only be called after Run
// has returned.
func (s *Session) State() (game.State, bool) {
	if s.rep == nil {
		return game.State{}, false
	}
	return s.rep.State()
}

// Local returns the seat assigned by the relay, NoPlayer before seating.
// It must only be called after Run has returned.
func (s *Session) Local() game.Player {
	if s.rep == nil {
		return game.NoPlayer
	}
	return s.rep.Local()
}

// Run joins the configured room and plays until ctx is cancelled, the
// match fails, or (with ExitOnGameOver) the match ends.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		if s.think != nil {
			s.think.Stop()
		}
		close(s.done)
		close(s.events)
	}()

	if err := s.transport.Join(s.opts.Room, s.opts.Name); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	incoming := s.transport.Incoming()

	for {
		var thinkC <-chan time.Time
		if s.think != nil {
			thinkC = s.think.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-incoming:
			if !ok {
				return ErrDisconnected
			}
			if err := s.handleMessage(msg); err != nil {
				return err
			}

		case a := <-s.actions:
			s.handleInput(a)

		case <-thinkC:
			s.think = nil
			s.botStep()
		}

		if s.finished && s.opts.ExitOnGameOver {
			return nil
		}
		s.scheduleBot()
	}
}

func (s *Session) handleMessage(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypeCurrentUserData:
		var data protocol.CurrentUserData
		if err := msg.Decode(&data); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if s.rep != nil {
			s.logger.Warn("Ignoring second seat assignment", "player", data.Player)
			return nil
		}
		s.rep = replica.New(data.Player, s.transport, s.logger)
		s.logger.Info("Seated", "room", data.Room, "player", data.Player, "name", data.Name)
		s.emit(Event{Kind: EventSeated, Player: data.Player, Text: data.Room})

	case protocol.TypeRoomData:
		var data protocol.RoomData
		if err := msg.Decode(&data); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		s.room = data
		s.emit(Event{Kind: EventRoom, Room: data})
		return s.roomChanged()

	case protocol.TypeRoomFull:
		var data protocol.ErrorData
		_ = msg.Decode(&data)
		return fmt.Errorf("%w: %s", ErrRoomFull, data.Message)

	case protocol.TypeError:
		var data protocol.ErrorData
		_ = msg.Decode(&data)
		s.logger.Warn("Relay error", "code", data.Code, "message", data.Message)
		s.emit(Event{Kind: EventNotice, Text: data.Message})

	case protocol.TypeInitGameState, protocol.TypeUpdateGameState:
		return s.handleSnapshot(msg)

	default:
		s.logger.Debug("Ignoring message", "type", msg.Type)
	}
	return nil
}

func (s *Session) roomChanged() error {
	if s.rep == nil {
		return nil
	}
	st, hasState := s.rep.State()

	if s.room.Full() && !hasState && s.rep.Local() == game.Player1 {
		seed := s.opts.Seed
		if seed == 0 {
			seed = randutil.Seed()
		}
		st, err := s.rep.Deal(seed)
		if err != nil {
			return err
		}
		s.emitState(st)
		return nil
	}

	if !s.room.Full() && hasState && !st.GameOver {
		s.logger.Warn("Opponent left mid-match")
		return ErrPeerLeft
	}
	return nil
}

func (s *Session) handleSnapshot(msg *protocol.Message) error {
	if s.rep == nil {
		s.logger.Warn("Snapshot before seat assignment", "type", msg.Type)
		return nil
	}

	var snap protocol.Snapshot
	if err := msg.Decode(&snap); err != nil {
		s.logger.Warn("Undecodable snapshot", "type", msg.Type, "error", err)
		s.emit(Event{Kind: EventNotice, Err: err, Text: "received an unreadable game update"})
		return nil
	}

	before := s.rep.Seq()
	var err error
	if msg.Type == protocol.TypeInitGameState {
		err = s.rep.ApplyInit(snap)
	} else {
		err = s.rep.ApplyRemote(snap)
	}

	switch {
	case errors.Is(err, replica.ErrDesyncDetected):
		st, _ := s.rep.State()
		s.emit(Event{Kind: EventNotice, State: st, Err: err, Text: "game state out of sync"})
		return err
	case err != nil:
		s.logger.Warn("Rejected snapshot", "seq", snap.Seq, "error", err)
		s.emit(Event{Kind: EventNotice, Err: err, Text: "rejected a game update"})
		return nil
	}

	if st, _ := s.rep.State(); st.Version != before || msg.Type == protocol.TypeInitGameState {
		s.emitState(st)
	}
	return nil
}

func (s *Session) handleInput(a game.Action) {
	if s.rep == nil {
		s.emit(Event{Kind: EventRejected, Action: a, Err: replica.ErrNoState})
		return
	}
	st, ok := s.rep.State()
	if !ok {
		s.emit(Event{Kind: EventRejected, Action: a, Err: replica.ErrNoState})
		return
	}

	// END is only accepted once the turn reaches nextTurn, which the
	// session normally passes through on its own.
	if a.Type == game.TriggerEnd && st.Phase != game.PhaseNextTurn && !st.GameOver {
		if st.Turn != s.rep.Local() {
			s.emit(Event{Kind: EventRejected, State: st, Action: a, Err: game.ErrNotYourTurn})
			return
		}
		s.endRequested = true
		s.emit(Event{Kind: EventNotice, State: st, Text: "the match will end after this turn"})
		return
	}

	_ = s.act(a)
}

// act applies a local action and then takes every step that needs no
// decision: confirming a checked play, passing, and handing over or
// claiming the win at the end of the turn.
func (s *Session) act(a game.Action) error {
	if err := s.apply(a); err != nil {
		return err
	}

	for {
		st, _ := s.rep.State()
		if st.GameOver || st.Turn != s.rep.Local() {
			return nil
		}

		var next game.Action
		switch st.Phase {
		case game.PhaseCheckCard:
			next = game.Legal(st.Turn)
		case game.PhasePassTurn:
			next = game.Pass(st.Turn)
		case game.PhaseNextTurn:
			switch {
			case s.endRequested:
				next = game.End(st.Turn)
			case len(st.CurrentHand()) == 0:
				next = game.Win(st.Turn)
			default:
				next = game.Next(st.Turn)
			}
		default:
			return nil
		}
		if err := s.apply(next); err != nil {
			return err
		}
	}
}

func (s *Session) apply(a game.Action) error {
	st, err := s.rep.ApplyLocal(a)
	switch {
	case errors.Is(err, replica.ErrPublish):
		s.emitState(st)
		s.emit(Event{Kind: EventNotice, State: st, Err: err, Text: "failed to send move to opponent"})
		return err
	case err != nil:
		s.emit(Event{Kind: EventRejected, State: st, Action: a, Err: err})
		return err
	}
	if a.Type == game.TriggerEnd {
		s.endRequested = false
	}
	s.emitState(st)
	return nil
}

func (s *Session) myTurn() bool {
	if s.rep == nil {
		return false
	}
	st, ok := s.rep.State()
	return ok && !st.GameOver && st.Turn == s.rep.Local()
}

// scheduleBot arranges for the strategy to move when it is our turn
func (s *Session) scheduleBot() {
	if s.opts.Strategy == nil || !s.myTurn() {
		return
	}
	if s.opts.ThinkDelay > 0 {
		if s.think == nil {
			s.think = s.clock.NewTimer(s.opts.ThinkDelay, "session", "think")
		}
		return
	}
	for i := 0; i < maxBotSteps && s.myTurn(); i++ {
		if !s.botStep() {
			return
		}
	}
}

func (s *Session) botStep() bool {
	if !s.myTurn() {
		return false
	}
	st, _ := s.rep.State()
	a, ok := s.opts.Strategy.Decide(st, s.rep.Local())
	if !ok {
		return false
	}
	s.logger.Debug("Bot acting", "action", a, "phase", st.Phase)
	return s.act(a) == nil
}

func (s *Session) emitState(st game.State) {
	s.emit(Event{Kind: EventState, State: st})
	if st.GameOver && !s.finished {
		s.finished = true
		s.logger.Info("Match over", "winner", st.Winner, "version", st.Version)
		s.emit(Event{Kind: EventGameOver, State: st, Player: st.Winner})
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("Dropping event, nobody listening", "kind", ev.Kind)
	}
}
