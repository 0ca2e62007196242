package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
)

// errQuit is returned by parseCommand for quit requests
var errQuit = errors.New("quit")

// errHelp is returned by parseCommand for help requests
var errHelp = errors.New("help")

const helpText = "draw | play <cards> | suit <C|S|H|D> | pass | end | quit"

// parseCommand turns a line of input into an action. The acting player is
// left empty; the session fills it in.
func parseCommand(input string) (game.Action, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return game.Action{}, fmt.Errorf("type a command (%s)", helpText)
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "draw", "d":
		return game.Draw(game.NoPlayer), nil

	case "play", "p":
		if len(args) == 0 {
			return game.Action{}, fmt.Errorf("play which cards? e.g. play 8H or play 5H 5S")
		}
		cards, err := deck.ParseCards(strings.Join(args, " "))
		if err != nil {
			return game.Action{}, err
		}
		return game.Play(game.NoPlayer, cards...), nil

	case "suit", "s":
		if len(args) != 1 {
			return game.Action{}, fmt.Errorf("name one suit: C, S, H or D")
		}
		suit, err := deck.ParseSuit(args[0])
		if err != nil {
			return game.Action{}, err
		}
		return game.ChooseSuit(game.NoPlayer, suit), nil

	case "pass":
		return game.Pass(game.NoPlayer), nil
	case "end":
		return game.End(game.NoPlayer), nil
	case "legal":
		return game.Legal(game.NoPlayer), nil
	case "illegal":
		return game.Illegal(game.NoPlayer), nil
	case "win":
		return game.Win(game.NoPlayer), nil
	case "next":
		return game.Next(game.NoPlayer), nil

	case "quit", "q", "exit":
		return game.Action{}, errQuit
	case "help", "h", "?":
		return game.Action{}, errHelp
	}

	return game.Action{}, fmt.Errorf("unknown command %q (%s)", verb, helpText)
}

// hint describes what the local player is expected to do in st
func hint(st game.State, me game.Player) string {
	if st.GameOver {
		return "Match over. Type quit to leave."
	}
	if st.Turn != me {
		return "Waiting for " + st.Turn.String() + "..."
	}

	switch st.Phase {
	case game.PhaseDrawCard:
		return "Your turn: draw a card."
	case game.PhasePlayCard:
		if len(game.LegalPlays(st)) == 0 {
			return "Nothing matches: play any card to start drawing."
		}
		return "Play one or more matching cards, or an eight."
	case game.PhaseChooseSuit:
		return "Name the new suit: suit C, S, H or D."
	case game.PhaseDrawMoreCards:
		left := game.MaxExtraDraws - st.DrawCount
		if left <= 0 {
			return "No draws left: draw once more to pass."
		}
		return fmt.Sprintf("Draw again (%d left).", left)
	case game.PhaseIllegalCard:
		return "That card does not match: draw a penalty card."
	}
	return ""
}
