package game

import (
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/randutil"
)

// Prepare shuffles the pack with seed and lays out both hands, the starting
// card and the draw pile. The returned state is still in PhaseStart.
func Prepare(seed int64) State {
	d := deck.NewDeck(randutil.New(seed))

	hand1 := d.DealN(HandSize)
	hand2 := d.DealN(HandSize)
	played := d.DealN(1)

	s := State{
		Phase:      PhaseStart,
		Turn:       Player1,
		Hand1:      hand1,
		Hand2:      hand2,
		PlayedPile: played,
		DrawPile:   d.Remaining(),
		Seed:       seed,
	}
	top := played[0]
	s.ActiveRank = top.Rank
	s.ActiveSuit = top.Suit
	return s
}

// Deal prepares a match from seed and starts it: Player 1 to act, first
// phase game.drawCard.
func Deal(seed int64) State {
	s, err := Apply(Prepare(seed), Start())
	if err != nil {
		// START is always accepted from a prepared state.
		panic(err)
	}
	return s
}
