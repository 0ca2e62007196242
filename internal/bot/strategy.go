// Package bot contains automated Crazy Eights players.
package bot

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/game"
)

// Strategy picks the next action for player me. It returns false when there
// is nothing for me to do in st.
type Strategy interface {
	Decide(st game.State, me game.Player) (game.Action, bool)
}

var strategies = map[string]func(rng *rand.Rand, logger *log.Logger) Strategy{
	"greedy": func(rng *rand.Rand, logger *log.Logger) Strategy { return NewBot(rng, logger) },
	"rand":   func(rng *rand.Rand, logger *log.Logger) Strategy { return NewRandBot(rng, logger) },
}

// Names lists the registered strategies
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName builds the named strategy
func ByName(name string, rng *rand.Rand, logger *log.Logger) (Strategy, error) {
	build, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown bot strategy %q (want one of %v)", name, Names())
	}
	return build(rng, logger), nil
}

// forced returns the action for phases that leave no choice
func forced(st game.State, me game.Player) (game.Action, bool) {
	switch st.Phase {
	case game.PhaseDrawCard, game.PhaseDrawMoreCards, game.PhaseIllegalCard:
		return game.Draw(me), true
	case game.PhaseCheckCard:
		return game.Legal(me), true
	case game.PhasePassTurn:
		return game.Pass(me), true
	case game.PhaseNextTurn:
		if len(st.Hand(me)) == 0 {
			return game.Win(me), true
		}
		return game.Next(me), true
	}
	return game.Action{}, false
}

// myTurn reports whether me is expected to act in st
func myTurn(st game.State, me game.Player) bool {
	return !st.GameOver && st.Phase != game.PhaseStart && st.Turn == me
}
