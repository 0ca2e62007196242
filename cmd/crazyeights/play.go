package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/bot"
	"github.com/lox/crazyeights/internal/client"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/randutil"
	"github.com/lox/crazyeights/internal/relay"
	"github.com/lox/crazyeights/internal/tui"
	"golang.org/x/sync/errgroup"
)

const localRoom = "LOCAL"

// PlayCmd joins a room as one participant, either at the terminal or as a
// headless bot.
type PlayCmd struct {
	Config   string `short:"c" default:"crazyeights.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Relay URL (overrides config)"`
	Name     string `short:"n" help:"Display name (overrides config, defaults to $USER)"`
	Room     string `short:"r" help:"Room code to join; empty asks the relay for a new one"`
	Bot      string `short:"b" help:"Play headless with a built-in strategy (greedy, rand)"`
	Seed     int64  `help:"Deal seed used when this participant deals (0 for random)"`
	ThinkMS  *int   `help:"Bot think time in milliseconds (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	NoColor  bool   `help:"Disable colored output"`

	Local    bool   `help:"Start an embedded relay and a bot opponent on localhost"`
	Opponent string `default:"greedy" help:"Strategy for the --local opponent"`
}

// config loads the HCL file and applies command line overrides
func (c *PlayCmd) config() (*client.Config, error) {
	cfg, err := client.LoadConfig(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Name != "" {
		cfg.Player.Name = c.Name
	}
	if c.Room != "" {
		cfg.Player.Room = c.Room
	}
	if c.Bot != "" {
		cfg.Player.Bot = c.Bot
	}
	if c.Seed != 0 {
		cfg.Player.Seed = c.Seed
	}
	if c.ThinkMS != nil {
		cfg.Player.ThinkMS = *c.ThinkMS
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}
	if c.NoColor {
		cfg.UI.NoColor = true
	}
	if c.Local && cfg.Player.Room == "" {
		cfg.Player.Room = localRoom
	}

	if cfg.Player.Name == "" {
		cfg.Player.Name = strings.TrimSpace(os.Getenv("USER"))
	}
	if cfg.Player.Name == "" {
		cfg.Player.Name = "player"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *PlayCmd) Run() error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.UI.NoColor {
		tui.DisableColor()
	}

	headless := cfg.Player.Bot != ""

	// The TUI owns the terminal, so interactive play always logs to a file.
	logPath := cfg.UI.LogFile
	if headless && c.LogFile == "" {
		logPath = ""
	}
	out, closeLog, err := openLog(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, err := newLogger(out, cfg.UI.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	serverURL := cfg.Server.URL
	if c.Local {
		serverURL, err = c.startLocal(ctx, g, cfg, logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	conn, err := connect(ctx, serverURL, cfg.Server.ConnectTimeout, logger)
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	defer func() { _ = conn.Disconnect() }()

	opts := client.SessionOptions{
		Name:           cfg.Player.Name,
		Room:           cfg.Player.Room,
		Seed:           cfg.Player.Seed,
		ThinkDelay:     time.Duration(cfg.Player.ThinkMS) * time.Millisecond,
		ExitOnGameOver: headless,
	}
	if headless {
		opts.Strategy, err = bot.ByName(cfg.Player.Bot, randutil.Derive(strategySeed(cfg.Player.Seed), 1), logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}
	sess := client.NewSession(conn, logger, opts)

	logger.Info("Starting Crazy Eights client",
		"server", serverURL,
		"player", cfg.Player.Name,
		"room", cfg.Player.Room,
		"bot", cfg.Player.Bot)

	if headless {
		g.Go(func() error {
			defer cancel()
			return sess.Run(ctx)
		})
		g.Go(func() error {
			for ev := range sess.Events() {
				logEvent(logger, ev)
			}
			return nil
		})
	} else {
		var sessErr error
		program := tea.NewProgram(tui.New(sess, sess.Events(), logger), tea.WithAltScreen())

		g.Go(func() error {
			sessErr = sess.Run(ctx)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			_, err := program.Run()
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			program.Quit()
			return nil
		})

		defer func() {
			if sessErr != nil && !errors.Is(sessErr, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Match ended: %v\n", sessErr)
			}
		}()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if st, ok := sess.State(); ok && st.GameOver {
		logger.Info("Match finished", "winner", st.Winner, "transitions", st.Version)
		if headless {
			fmt.Println(resultLine(st, sess.Local()))
		}
	}
	return nil
}

// startLocal runs an embedded relay on a random port plus a bot opponent
// already waiting in the room. It returns the relay's URL.
func (c *PlayCmd) startLocal(ctx context.Context, g *errgroup.Group, cfg *client.Config, logger *log.Logger) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	srv := relay.NewServer(logger)
	g.Go(func() error { return srv.Serve(ctx, ln) })

	baseURL := "http://" + ln.Addr().String()
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ConnectTimeout)*time.Second)
	defer cancel()
	if err := relay.WaitForHealthy(waitCtx, baseURL); err != nil {
		return "", err
	}

	oppLogger := logger.With("participant", "opponent")
	strategy, err := bot.ByName(c.Opponent, randutil.Derive(strategySeed(cfg.Player.Seed), 2), oppLogger)
	if err != nil {
		return "", err
	}
	conn, err := connect(ctx, baseURL, cfg.Server.ConnectTimeout, oppLogger)
	if err != nil {
		return "", err
	}

	opp := client.NewSession(conn, oppLogger, client.SessionOptions{
		Name:       c.Opponent + "-bot",
		Room:       cfg.Player.Room,
		Strategy:   strategy,
		ThinkDelay: time.Duration(cfg.Player.ThinkMS) * time.Millisecond,
	})
	g.Go(func() error {
		defer func() { _ = conn.Disconnect() }()
		err := opp.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled),
			errors.Is(err, client.ErrDisconnected),
			errors.Is(err, client.ErrPeerLeft):
			return nil
		}
		return err
	})
	g.Go(func() error {
		for range opp.Events() {
		}
		return nil
	})
	return baseURL, nil
}

func connect(ctx context.Context, url string, timeoutSecs int, logger *log.Logger) (*client.Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	conn := client.NewClient(url, logger)
	if err := conn.Connect(connCtx); err != nil {
		return nil, err
	}
	return conn, nil
}

// strategySeed keeps bot choices reproducible when a deal seed is fixed
func strategySeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return randutil.Seed()
}

func logEvent(logger *log.Logger, ev client.Event) {
	switch ev.Kind {
	case client.EventSeated:
		logger.Info("Seated", "room", ev.Text, "as", ev.Player)
	case client.EventRoom:
		logger.Info("Room changed", "room", ev.Room.Room, "users", len(ev.Room.Users))
	case client.EventState:
		logger.Debug("State", "phase", ev.State.Phase, "turn", ev.State.Turn, "version", ev.State.Version)
	case client.EventRejected:
		logger.Warn("Action rejected", "action", ev.Action, "error", ev.Err)
	case client.EventNotice:
		logger.Warn(ev.Text, "error", ev.Err)
	case client.EventGameOver:
		logger.Info("Game over", "winner", ev.Player)
	}
}

func resultLine(st game.State, me game.Player) string {
	switch st.Winner {
	case game.NoPlayer:
		return "Match abandoned"
	case me:
		return fmt.Sprintf("%s won after %d transitions", me, st.Version)
	default:
		return fmt.Sprintf("%s lost after %d transitions", me, st.Version)
	}
}
