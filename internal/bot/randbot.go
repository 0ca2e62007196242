package bot

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
)

// RandBot plays one uniformly random legal card per turn and names a random
// suit after an eight.
type RandBot struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewRandBot creates a new RandBot instance
func NewRandBot(rng *rand.Rand, logger *log.Logger) *RandBot {
	return &RandBot{rng: rng, logger: logger.WithPrefix("randbot")}
}

// Decide implements Strategy
func (r *RandBot) Decide(st game.State, me game.Player) (game.Action, bool) {
	if !myTurn(st, me) {
		return game.Action{}, false
	}

	switch st.Phase {
	case game.PhasePlayCard:
		legal := game.LegalPlays(st)
		if len(legal) == 0 {
			return game.Play(me, st.CurrentHand()[0]), true
		}
		return game.Play(me, legal[r.rng.IntN(len(legal))]), true

	case game.PhaseChooseSuit:
		return game.ChooseSuit(me, deck.Suits[r.rng.IntN(len(deck.Suits))]), true
	}

	return forced(st, me)
}
