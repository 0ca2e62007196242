package client

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/crazyeights/internal/bot"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
	"github.com/lox/crazyeights/internal/randutil"
	"github.com/lox/crazyeights/internal/relay"
	"github.com/lox/crazyeights/internal/replica"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// fakeTransport stands in for the relay connection
type fakeTransport struct {
	in chan *protocol.Message

	mu      sync.Mutex
	room    string
	inits   []protocol.Snapshot
	updates []protocol.Snapshot
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan *protocol.Message, 64)}
}

func (f *fakeTransport) Join(room, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.room = room
	return nil
}

func (f *fakeTransport) Incoming() <-chan *protocol.Message { return f.in }

func (f *fakeTransport) PublishInit(s protocol.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, s)
	return nil
}

func (f *fakeTransport) PublishUpdate(s protocol.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, s)
	return nil
}

func (f *fakeTransport) deliver(t *testing.T, typ protocol.MessageType, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(typ, data)
	require.NoError(t, err)
	f.in <- msg
}

func (f *fakeTransport) seat(t *testing.T, player game.Player, full bool) {
	t.Helper()
	f.deliver(t, protocol.TypeCurrentUserData, protocol.CurrentUserData{Room: "r", Name: "me", Player: player})
	users := []protocol.User{{Name: "p1", Player: game.Player1}}
	if full {
		users = append(users, protocol.User{Name: "p2", Player: game.Player2})
	}
	f.deliver(t, protocol.TypeRoomData, protocol.RoomData{Room: "r", Users: users})
}

// runSession starts Run in the background and returns a channel with its
// result
func runSession(t *testing.T, s *Session) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()
	return result
}

// waitFor reads events until one satisfies match
func waitFor(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "session ended while waiting")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func isKind(k EventKind) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == k }
}

func awaitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func TestPlayerOneDealsWhenRoomFills(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{Room: "r", Seed: 77})
	runSession(t, s)

	ft.seat(t, game.Player1, false)
	waitFor(t, s, isKind(EventRoom))

	ft.deliver(t, protocol.TypeRoomData, protocol.RoomData{Room: "r", Users: []protocol.User{
		{Name: "p1", Player: game.Player1}, {Name: "p2", Player: game.Player2},
	}})
	ev := waitFor(t, s, isKind(EventState))
	assert.True(t, game.Deal(77).Equal(ev.State))

	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.Len(t, ft.inits, 1)
	assert.Equal(t, "r", ft.room)
}

func TestPlayerTwoWaitsForInit(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	runSession(t, s)

	ft.seat(t, game.Player2, true)
	waitFor(t, s, isKind(EventRoom))

	st := game.Deal(5)
	ft.deliver(t, protocol.TypeInitGameState, protocol.FullSnapshot(st))
	ev := waitFor(t, s, isKind(EventState))
	assert.True(t, st.Equal(ev.State))

	ft.mu.Lock()
	defer ft.mu.Unlock()
	assert.Empty(t, ft.inits)
}

// seedWithOpeningPlay finds a deal where Player 1 can play a card right
// after the opening draw
func seedWithOpeningPlay(t *testing.T) (int64, game.State) {
	t.Helper()
	for seed := int64(1); seed < 1000; seed++ {
		st, err := game.Apply(game.Deal(seed), game.Draw(game.Player1))
		require.NoError(t, err)
		if legal := game.LegalPlays(st); len(legal) > 0 && !legal[0].IsWild() {
			return seed, st
		}
	}
	t.Fatal("no suitable seed")
	return 0, game.State{}
}

func TestHumanTurnAutoAdvances(t *testing.T) {
	seed, afterDraw := seedWithOpeningPlay(t)

	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{Seed: seed})
	runSession(t, s)
	ft.seat(t, game.Player1, true)
	waitFor(t, s, isKind(EventState))

	require.NoError(t, s.Submit(game.Draw(game.NoPlayer)))
	ev := waitFor(t, s, isKind(EventState))
	assert.True(t, afterDraw.Equal(ev.State))

	card := game.LegalPlays(afterDraw)[0]
	require.NoError(t, s.Submit(game.Play(game.NoPlayer, card)))

	// PLAY, then LEGAL and NEXT without further input.
	ev = waitFor(t, s, func(ev Event) bool {
		return ev.Kind == EventState && ev.State.Phase == game.PhaseDrawCard
	})
	assert.Equal(t, game.Player2, ev.State.Turn)
	top, _ := ev.State.Top()
	assert.Equal(t, card, top)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.Len(t, ft.updates, 4)
	for i, u := range ft.updates {
		require.NotNil(t, u.Base)
		assert.Equal(t, u.Seq-1, *u.Base, "update %d", i)
	}
}

func TestRejectedInputIsReported(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{Seed: 3})
	runSession(t, s)
	ft.seat(t, game.Player1, true)
	waitFor(t, s, isKind(EventState))

	require.NoError(t, s.Submit(game.Pass(game.NoPlayer)))
	ev := waitFor(t, s, isKind(EventRejected))
	assert.ErrorIs(t, ev.Err, game.ErrIllegalAction)
}

func TestInputBeforeSeatIsRejected(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	runSession(t, s)

	require.NoError(t, s.Submit(game.Draw(game.NoPlayer)))
	ev := waitFor(t, s, isKind(EventRejected))
	assert.ErrorIs(t, ev.Err, replica.ErrNoState)
}

func TestEndIsDeferredToEndOfTurn(t *testing.T) {
	seed, afterDraw := seedWithOpeningPlay(t)

	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{Seed: seed})
	result := runSession(t, s)
	ft.seat(t, game.Player1, true)
	waitFor(t, s, isKind(EventState))

	require.NoError(t, s.Submit(game.End(game.NoPlayer)))
	waitFor(t, s, isKind(EventNotice))

	require.NoError(t, s.Submit(game.Draw(game.NoPlayer)))
	require.NoError(t, s.Submit(game.Play(game.NoPlayer, game.LegalPlays(afterDraw)[0])))

	ev := waitFor(t, s, isKind(EventGameOver))
	assert.Equal(t, game.NoPlayer, ev.Player)
	assert.True(t, ev.State.GameOver)

	require.NoError(t, s.Submit(game.Draw(game.NoPlayer)))
	rejected := waitFor(t, s, isKind(EventRejected))
	assert.ErrorIs(t, rejected.Err, game.ErrGameOver)

	select {
	case err := <-result:
		t.Fatalf("session returned early: %v", err)
	default:
	}
}

func TestDesyncEndsSession(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	result := runSession(t, s)
	ft.seat(t, game.Player2, true)

	st := game.Deal(9)
	ft.deliver(t, protocol.TypeInitGameState, protocol.FullSnapshot(st))

	base := st.Version + 3
	ft.deliver(t, protocol.TypeUpdateGameState, protocol.Snapshot{Seq: base + 1, Base: &base})

	assert.ErrorIs(t, awaitResult(t, result), replica.ErrDesyncDetected)
}

func TestMalformedSnapshotIsSurvivable(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	result := runSession(t, s)
	ft.seat(t, game.Player2, true)

	st := game.Deal(9)
	ft.deliver(t, protocol.TypeInitGameState, protocol.FullSnapshot(st))
	waitFor(t, s, isKind(EventState))

	next, err := game.Apply(st, game.Draw(game.Player1))
	require.NoError(t, err)
	bad := protocol.Diff(st, next)
	short := (*bad.Hand1)[1:]
	bad.Hand1 = &short
	ft.deliver(t, protocol.TypeUpdateGameState, bad)

	ev := waitFor(t, s, isKind(EventNotice))
	assert.ErrorIs(t, ev.Err, replica.ErrMalformedSnapshot)

	ft.deliver(t, protocol.TypeUpdateGameState, protocol.Diff(st, next))
	ev = waitFor(t, s, isKind(EventState))
	assert.True(t, next.Equal(ev.State))

	select {
	case err := <-result:
		t.Fatalf("session returned early: %v", err)
	default:
	}
}

func TestRoomFullEndsSession(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	result := runSession(t, s)

	ft.deliver(t, protocol.TypeRoomFull, protocol.ErrorData{Code: "room_full", Message: "full"})
	assert.ErrorIs(t, awaitResult(t, result), ErrRoomFull)
}

func TestPeerLeavingMidMatch(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{Seed: 1})
	result := runSession(t, s)
	ft.seat(t, game.Player1, true)
	waitFor(t, s, isKind(EventState))

	ft.deliver(t, protocol.TypeRoomData, protocol.RoomData{Room: "r", Users: []protocol.User{{Name: "p1", Player: game.Player1}}})
	assert.ErrorIs(t, awaitResult(t, result), ErrPeerLeft)
}

func TestDisconnectEndsSession(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft, testLogger(), SessionOptions{})
	result := runSession(t, s)

	close(ft.in)
	assert.ErrorIs(t, awaitResult(t, result), ErrDisconnected)
	assert.ErrorIs(t, s.Submit(game.Draw(game.NoPlayer)), ErrSessionClosed)
}

func TestBotThinkDelayUsesClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mockClock := quartz.NewMock(t)
	ft := newFakeTransport()
	strategy := bot.NewBot(randutil.New(1), testLogger())
	s := NewSession(ft, testLogger(), SessionOptions{
		Seed:       12,
		Strategy:   strategy,
		ThinkDelay: time.Second,
		Clock:      mockClock,
	})
	runSession(t, s)

	ft.seat(t, game.Player1, true)
	dealt := waitFor(t, s, isKind(EventState))
	assert.Equal(t, game.PhaseDrawCard, dealt.State.Phase)

	// Nothing happens until the bot has thought about it.
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %s before think delay", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	mockClock.Advance(time.Second).MustWait(ctx)
	ev := waitFor(t, s, isKind(EventState))
	assert.Equal(t, game.PhasePlayCard, ev.State.Phase)
}

func startRelay(t *testing.T) string {
	t.Helper()
	srv := relay.NewServer(testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestBotsConvergeThroughRelay(t *testing.T) {
	url := startRelay(t)

	for _, seed := range []int64{1, 2, 3} {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		c1 := NewClient(url, testLogger())
		require.NoError(t, c1.Connect(ctx))
		c2 := NewClient(url, testLogger())
		require.NoError(t, c2.Connect(ctx))

		room := "match-" + string(rune('a'+seed))
		s1 := NewSession(c1, testLogger(), SessionOptions{
			Name: "one", Room: room, Seed: seed, ExitOnGameOver: true,
			Strategy: bot.NewBot(randutil.New(seed), testLogger()),
		})
		s2 := NewSession(c2, testLogger(), SessionOptions{
			Name: "two", Room: room, ExitOnGameOver: true,
			Strategy: bot.NewBot(randutil.New(seed+100), testLogger()),
		})

		// Seat the dealer first so the seats are predictable.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s1.Run(gctx) })
		waitFor(t, s1, isKind(EventSeated))
		g.Go(func() error { return s2.Run(gctx) })
		go drain(s1)
		go drain(s2)

		require.NoError(t, g.Wait(), "seed %d", seed)

		st1, ok1 := s1.State()
		st2, ok2 := s2.State()
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, game.Player1, s1.Local())
		assert.Equal(t, game.Player2, s2.Local())
		assert.True(t, st1.GameOver)
		assert.True(t, st1.Equal(st2), "seed %d diverged:\n%s\n%s", seed, st1, st2)
		assert.NoError(t, st1.Validate())

		_ = c1.Disconnect()
		_ = c2.Disconnect()
		cancel()
	}
}

func drain(s *Session) {
	for range s.Events() {
	}
}
