package game

import (
	"testing"

	"github.com/lox/crazyeights/internal/deck"
	"github.com/stretchr/testify/require"
)

// fixture builds a valid state from explicit hands and played pile. Every
// card not mentioned goes to the draw pile in pack order.
func fixture(t *testing.T, phase Phase, hand1, hand2, played string) State {
	t.Helper()

	h1 := deck.MustParseCards(hand1)
	h2 := deck.MustParseCards(hand2)
	pp := deck.MustParseCards(played)
	require.NotEmpty(t, pp, "played pile needs a top card")

	used := map[deck.Card]bool{}
	for _, group := range [][]deck.Card{h1, h2, pp} {
		for _, c := range group {
			require.False(t, used[c], "fixture reuses %s", c)
			used[c] = true
		}
	}

	var draw []deck.Card
	for _, c := range deck.Pack() {
		if !used[c] {
			draw = append(draw, c)
		}
	}

	top := pp[len(pp)-1]
	s := State{
		Phase:        phase,
		Turn:         Player1,
		Hand1:        h1,
		Hand2:        h2,
		DrawPile:     draw,
		PlayedPile:   pp,
		ActiveRank:   top.Rank,
		ActiveSuit:   top.Suit,
		StartingCard: pp[0],
		Seed:         1,
	}
	require.NoError(t, s.Validate())
	return s
}

func cards(str string) []deck.Card {
	return deck.MustParseCards(str)
}

func card(str string) deck.Card {
	return deck.MustParseCards(str)[0]
}

// mustApply applies each action in turn, failing the test on any rejection
func mustApply(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		next, err := Apply(s, a)
		require.NoError(t, err, "applying %s in %s", a, s.Phase)
		require.NoError(t, next.Validate(), "after %s", a)
		s = next
	}
	return s
}
