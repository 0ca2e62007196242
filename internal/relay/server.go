package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/protocol"
)

// Server relays game snapshots between the two participants of each room.
// It never inspects the snapshots it forwards.
type Server struct {
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	rooms       map[string]*room
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	clock       quartz.Clock
	maxRooms    int
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used for keepalive pings
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithMaxRooms caps the number of open rooms
func WithMaxRooms(n int) Option {
	return func(s *Server) { s.maxRooms = n }
}

// NewServer creates a new relay server. The hub loop starts immediately.
func NewServer(logger *log.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		rooms:       make(map[string]*room),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("relay"),
		clock:       quartz.NewReal(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Handler returns the HTTP handler serving /ws and /health
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = s.Stop()
	}()

	s.logger.Info("Starting relay server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Stop closes every connection and stops the hub loop
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "conn", conn.ID(), "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				s.leaveLocked(conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "conn", conn.ID(), "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger, s.clock)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// RoomCount returns the number of open rooms
func (s *Server) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// join seats c in the requested room, creating it when needed
func (s *Server) join(c *Connection, data protocol.JoinData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Room() != "" {
		c.sendError("already_joined", "Already seated in room "+c.Room())
		return
	}

	code := strings.TrimSpace(data.Room)
	if code == "" {
		code = newRoomCode()
	}

	r, ok := s.rooms[code]
	if !ok {
		if s.maxRooms > 0 && len(s.rooms) >= s.maxRooms {
			c.sendError("too_many_rooms", "The relay is not accepting new rooms")
			return
		}
		r = newRoom(code)
		s.rooms[code] = r
		s.logger.Info("Created room", "room", code)
	}

	if data.Name != "" {
		c.SetName(data.Name)
	}
	player := r.seat(c)
	if player == game.NoPlayer {
		s.logger.Info("Room full, refusing seat", "room", code, "conn", c.ID())
		msg, err := protocol.NewMessage(protocol.TypeRoomFull, protocol.ErrorData{
			Code:    "room_full",
			Message: "Room " + code + " already has two players",
		})
		if err == nil {
			_ = c.SendMessage(msg)
		}
		return
	}
	c.setSeat(code, player)

	s.logger.Info("Player joined room", "room", code, "player", player, "name", c.Name())
	if msg, err := protocol.NewMessage(protocol.TypeCurrentUserData, protocol.CurrentUserData{
		Room:   code,
		Name:   c.Name(),
		Player: player,
	}); err == nil {
		_ = c.SendMessage(msg)
	}
	s.broadcastRoomLocked(r)
}

// leave removes c from its room
func (s *Server) leave(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked(c)
}

func (s *Server) leaveLocked(c *Connection) {
	code := c.Room()
	if code == "" {
		return
	}
	c.setSeat("", game.NoPlayer)

	r, ok := s.rooms[code]
	if !ok || !r.remove(c) {
		return
	}
	s.logger.Info("Player left room", "room", code, "name", c.Name())

	if r.empty() {
		delete(s.rooms, code)
		s.logger.Info("Closed room", "room", code)
		return
	}
	s.broadcastRoomLocked(r)
}

// forward sends msg untouched to the sender's peer. Messages from one
// sender are forwarded in the order they were read.
func (s *Server) forward(c *Connection, msg *protocol.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := c.Room()
	r, ok := s.rooms[code]
	if !ok {
		c.sendError("not_in_room", "Join a room before sending game state")
		return
	}
	peer := r.peer(c)
	if peer == nil {
		s.logger.Warn("Dropping game state, no peer in room", "room", code, "type", msg.Type)
		return
	}
	if err := peer.SendMessage(msg); err != nil {
		s.logger.Error("Failed to forward message", "room", code, "type", msg.Type, "error", err)
		return
	}
	s.logger.Debug("Forwarded message", "room", code, "type", msg.Type, "from", c.Player())
}

func (s *Server) broadcastRoomLocked(r *room) {
	msg, err := protocol.NewMessage(protocol.TypeRoomData, r.data())
	if err != nil {
		s.logger.Error("Failed to create room data", "error", err)
		return
	}
	for _, member := range r.members() {
		if err := member.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send room data", "room", r.code, "error", err)
		}
	}
}

func newRoomCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
