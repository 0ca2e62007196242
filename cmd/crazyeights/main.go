package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the relay server"`
	Play    PlayCmd          `cmd:"" help:"Join a room and play a match"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("crazyeights"),
		kong.Description("Two-player Crazy Eights over a websocket relay"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
