package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func startRelay(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	srv := NewServer(testLogger(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ protocol.MessageType, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(typ, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func expect(t *testing.T, conn *websocket.Conn, typ protocol.MessageType) protocol.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, typ, msg.Type, "payload: %s", string(msg.Data))
	return msg
}

// joinRoom joins and consumes the seat assignment and room update
func joinRoom(t *testing.T, conn *websocket.Conn, room, name string) protocol.CurrentUserData {
	t.Helper()
	send(t, conn, protocol.TypeJoin, protocol.JoinData{Room: room, Name: name})

	var me protocol.CurrentUserData
	require.NoError(t, expect(t, conn, protocol.TypeCurrentUserData).Decode(&me))
	expect(t, conn, protocol.TypeRoomData)
	return me
}

func TestServerHealth(t *testing.T) {
	srv := NewServer(testLogger())
	defer srv.Stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestJoinAssignsSeatsInOrder(t *testing.T) {
	srv, url := startRelay(t)

	alice := dial(t, url)
	me := joinRoom(t, alice, "", "alice")
	assert.Equal(t, game.Player1, me.Player)
	assert.NotEmpty(t, me.Room)
	assert.Equal(t, "alice", me.Name)

	bob := dial(t, url)
	send(t, bob, protocol.TypeJoin, protocol.JoinData{Room: me.Room, Name: "bob"})

	var bobSeat protocol.CurrentUserData
	require.NoError(t, expect(t, bob, protocol.TypeCurrentUserData).Decode(&bobSeat))
	assert.Equal(t, game.Player2, bobSeat.Player)

	// Both participants learn the room is full.
	for _, conn := range []*websocket.Conn{alice, bob} {
		var rd protocol.RoomData
		require.NoError(t, expect(t, conn, protocol.TypeRoomData).Decode(&rd))
		assert.True(t, rd.Full())
		assert.Equal(t, []protocol.User{
			{Name: "alice", Player: game.Player1},
			{Name: "bob", Player: game.Player2},
		}, rd.Users)
	}
	assert.Equal(t, 1, srv.RoomCount())
}

func TestThirdParticipantIsRefused(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	joinRoom(t, a, "table", "a")
	b := dial(t, url)
	joinRoom(t, b, "table", "b")

	c := dial(t, url)
	send(t, c, protocol.TypeJoin, protocol.JoinData{Room: "table", Name: "c"})

	var data protocol.ErrorData
	require.NoError(t, expect(t, c, protocol.TypeRoomFull).Decode(&data))
	assert.Equal(t, "room_full", data.Code)
}

func TestGameStateIsForwardedToPeerOnly(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	joinRoom(t, a, "r1", "a")
	b := dial(t, url)
	joinRoom(t, b, "r1", "b")
	expect(t, a, protocol.TypeRoomData)

	st := game.Deal(7)
	send(t, a, protocol.TypeInitGameState, protocol.FullSnapshot(st))
	next, err := game.Apply(st, game.Draw(game.Player1))
	require.NoError(t, err)
	send(t, a, protocol.TypeUpdateGameState, protocol.Diff(st, next))

	var init protocol.Snapshot
	require.NoError(t, expect(t, b, protocol.TypeInitGameState).Decode(&init))
	got, err := init.MergeInto(game.State{})
	require.NoError(t, err)
	assert.True(t, st.Equal(got))

	var update protocol.Snapshot
	require.NoError(t, expect(t, b, protocol.TypeUpdateGameState).Decode(&update))
	got, err = update.MergeInto(got)
	require.NoError(t, err)
	assert.True(t, next.Equal(got))

	// Nothing echoes back to the sender.
	_ = a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = a.ReadMessage()
	assert.Error(t, err)
}

func TestForwardOrderIsPreserved(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	joinRoom(t, a, "order", "a")
	b := dial(t, url)
	joinRoom(t, b, "order", "b")

	for i := uint64(1); i <= 50; i++ {
		send(t, a, protocol.TypeUpdateGameState, protocol.Snapshot{Seq: i})
	}
	for i := uint64(1); i <= 50; i++ {
		var snap protocol.Snapshot
		require.NoError(t, expect(t, b, protocol.TypeUpdateGameState).Decode(&snap))
		assert.Equal(t, i, snap.Seq)
	}
}

func TestGameStateBeforeJoinIsAnError(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	send(t, a, protocol.TypeUpdateGameState, protocol.Snapshot{Seq: 1})

	var data protocol.ErrorData
	require.NoError(t, expect(t, a, protocol.TypeError).Decode(&data))
	assert.Equal(t, "not_in_room", data.Code)
}

func TestUnknownMessageType(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	require.NoError(t, a.WriteJSON(map[string]any{"type": "shout"}))

	var data protocol.ErrorData
	require.NoError(t, expect(t, a, protocol.TypeError).Decode(&data))
	assert.Equal(t, "unknown_message_type", data.Code)
}

func TestLeaveFreesSeatAndNotifiesPeer(t *testing.T) {
	srv, url := startRelay(t)

	a := dial(t, url)
	joinRoom(t, a, "lobby", "a")
	b := dial(t, url)
	joinRoom(t, b, "lobby", "b")
	expect(t, a, protocol.TypeRoomData)

	send(t, a, protocol.TypeLeave, nil)

	var rd protocol.RoomData
	require.NoError(t, expect(t, b, protocol.TypeRoomData).Decode(&rd))
	assert.False(t, rd.Full())
	assert.Equal(t, game.Player2, rd.Users[0].Player)

	// The freed first seat is handed to the next arrival.
	c := dial(t, url)
	me := joinRoom(t, c, "lobby", "c")
	assert.Equal(t, game.Player1, me.Player)

	require.NoError(t, c.Close())
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return srv.RoomCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectNotifiesPeer(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	joinRoom(t, a, "drop", "a")
	b := dial(t, url)
	joinRoom(t, b, "drop", "b")
	expect(t, a, protocol.TypeRoomData)

	require.NoError(t, a.Close())

	var rd protocol.RoomData
	require.NoError(t, expect(t, b, protocol.TypeRoomData).Decode(&rd))
	assert.Len(t, rd.Users, 1)
}

func TestMaxRooms(t *testing.T) {
	_, url := startRelay(t, WithMaxRooms(1))

	a := dial(t, url)
	joinRoom(t, a, "", "a")

	b := dial(t, url)
	send(t, b, protocol.TypeJoin, protocol.JoinData{Name: "b"})

	var data protocol.ErrorData
	require.NoError(t, expect(t, b, protocol.TypeError).Decode(&data))
	assert.Equal(t, "too_many_rooms", data.Code)
}

func TestKeepalivePingUsesClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mockClock := quartz.NewMock(t)
	_, url := startRelay(t, WithClock(mockClock))

	a := dial(t, url)
	// The reply proves the write pump, and with it the ticker, is running.
	joinRoom(t, a, "", "a")

	pinged := make(chan struct{}, 1)
	a.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := a.ReadMessage(); err != nil {
				return
			}
		}
	}()

	mockClock.Advance(pingPeriod).MustWait(ctx)

	select {
	case <-pinged:
	case <-ctx.Done():
		t.Fatal("no ping received")
	}
}

func TestMessageEnvelopeIsJSON(t *testing.T) {
	_, url := startRelay(t)

	a := dial(t, url)
	send(t, a, protocol.TypeJoin, protocol.JoinData{Room: "json", Name: "a"})

	_ = a.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, raw, err := a.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Contains(t, env, "type")
	assert.Contains(t, env, "data")
	assert.Contains(t, env, "timestamp")
}
