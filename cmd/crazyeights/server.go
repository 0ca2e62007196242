package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lox/crazyeights/internal/relay"
)

// ServerCmd runs the relay
type ServerCmd struct {
	Config   string `short:"c" default:"crazyeights-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Address to listen on, host:port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	MaxRooms *int   `help:"Maximum concurrent rooms, 0 for unlimited (overrides config)"`
}

// config loads the HCL file and applies command line overrides
func (c *ServerCmd) config() (*relay.Config, error) {
	cfg, err := relay.LoadConfig(c.Config)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.Server.LogFile = c.LogFile
	}
	if c.MaxRooms != nil {
		cfg.Server.MaxRooms = *c.MaxRooms
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerCmd) Run() error {
	cfg, err := c.config()
	if err != nil {
		return err
	}

	out, closeLog, err := openLog(cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, err := newLogger(out, cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Crazy Eights relay",
		"addr", addr,
		"max_rooms", cfg.Server.MaxRooms,
		"config", c.Config)

	srv := relay.NewServer(logger, relay.WithMaxRooms(cfg.Server.MaxRooms))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return err
	}
	logger.Info("Relay stopped")
	return nil
}
