package bot

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
	"github.com/lox/crazyeights/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// stateWith returns a dealt state whose current hand and top card are
// replaced by the given cards, keeping the pack closed.
func stateWith(t *testing.T, phase game.Phase, hand string, top string) game.State {
	t.Helper()
	h := deck.MustParseCards(hand)
	tc := deck.MustParseCards(top)[0]

	used := map[deck.Card]bool{tc: true}
	for _, c := range h {
		used[c] = true
	}
	var rest []deck.Card
	for _, c := range deck.Pack() {
		if !used[c] {
			rest = append(rest, c)
		}
	}

	st := game.State{
		Phase:      phase,
		Turn:       game.Player1,
		Hand1:      h,
		Hand2:      rest[:5],
		DrawPile:   rest[5:],
		PlayedPile: []deck.Card{tc},
		ActiveRank: tc.Rank,
		ActiveSuit: tc.Suit,
		Seed:       1,
	}
	require.NoError(t, st.Validate())
	return st
}

func TestBotPlaysEveryLegalCardWithEightsLast(t *testing.T) {
	b := NewBot(randutil.New(1), quietLogger())
	st := stateWith(t, game.PhasePlayCard, "8C 5H KD 9H 5S", "5D")

	a, ok := b.Decide(st, game.Player1)
	require.True(t, ok)
	assert.Equal(t, game.TriggerPlay, a.Type)
	assert.ElementsMatch(t, deck.MustParseCards("8C 5H KD 5S"), a.Cards)
	assert.Equal(t, deck.MustParseCards("8C")[0], a.Cards[len(a.Cards)-1])

	next, err := game.Apply(st, a)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseChooseSuit, next.Phase)
	assert.Equal(t, deck.MustParseCards("9H"), next.Hand1)
}

func TestBotWithNoLegalCardOffersOne(t *testing.T) {
	b := NewBot(randutil.New(1), quietLogger())
	st := stateWith(t, game.PhasePlayCard, "9H 3C", "5D")

	a, ok := b.Decide(st, game.Player1)
	require.True(t, ok)

	next, err := game.Apply(st, a)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseDrawMoreCards, next.Phase)
}

func TestBotChoosesMostCommonSuit(t *testing.T) {
	b := NewBot(randutil.New(1), quietLogger())
	st := stateWith(t, game.PhaseChooseSuit, "2S 3S 4H 8D 8H", "8C")

	a, ok := b.Decide(st, game.Player1)
	require.True(t, ok)
	assert.Equal(t, game.ChooseSuit(game.Player1, deck.Spades), a)
}

func TestBotWaitsForItsTurn(t *testing.T) {
	b := NewBot(randutil.New(1), quietLogger())
	st := game.Deal(4)

	_, ok := b.Decide(st, game.Player2)
	assert.False(t, ok)

	st.GameOver = true
	_, ok = b.Decide(st, game.Player1)
	assert.False(t, ok)
}

func TestForcedPhases(t *testing.T) {
	tests := []struct {
		phase game.Phase
		hand  string
		want  game.Trigger
	}{
		{game.PhaseDrawCard, "2S", game.TriggerDraw},
		{game.PhaseDrawMoreCards, "2S", game.TriggerDraw},
		{game.PhaseIllegalCard, "2S", game.TriggerDraw},
		{game.PhaseCheckCard, "2S", game.TriggerLegal},
		{game.PhasePassTurn, "2S", game.TriggerPass},
		{game.PhaseNextTurn, "2S", game.TriggerNext},
		{game.PhaseNextTurn, "", game.TriggerWin},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase)+"/"+string(tt.want), func(t *testing.T) {
			st := stateWith(t, tt.phase, tt.hand, "5D")
			for _, s := range []Strategy{NewBot(randutil.New(1), quietLogger()), NewRandBot(randutil.New(1), quietLogger())} {
				a, ok := s.Decide(st, game.Player1)
				require.True(t, ok)
				assert.Equal(t, tt.want, a.Type)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		s, err := ByName(name, randutil.New(1), quietLogger())
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
	_, err := ByName("psychic", randutil.New(1), quietLogger())
	assert.Error(t, err)
	assert.Equal(t, []string{"greedy", "rand"}, Names())
}

// selfPlay runs a whole match between two strategies straight through the
// engine, checking the closed-world invariant after every transition.
func selfPlay(t *testing.T, seed int64, p1, p2 Strategy, maxSteps int) (game.State, bool) {
	t.Helper()
	st := game.Deal(seed)
	for step := 0; step < maxSteps; step++ {
		if st.GameOver {
			return st, true
		}
		s := p1
		if st.Turn == game.Player2 {
			s = p2
		}
		a, ok := s.Decide(st, st.Turn)
		require.True(t, ok, "no decision in %s", st)

		next, err := game.Apply(st, a)
		require.NoError(t, err, "%s rejected in %s", a, st)
		require.NoError(t, next.Validate(), "after %s", a)
		require.Equal(t, st.Version+1, next.Version)
		st = next
	}
	return st, st.GameOver
}

func TestSelfPlayKeepsInvariant(t *testing.T) {
	const seeds = 200
	finished := 0
	for seed := int64(1); seed <= seeds; seed++ {
		rng := randutil.New(seed)
		st, done := selfPlay(t, seed, NewBot(rng, quietLogger()), NewBot(rng, quietLogger()), 5000)
		if done {
			finished++
			require.True(t, st.Winner.Valid(), "seed %d", seed)
			assert.Empty(t, st.Hand(st.Winner), "seed %d", seed)
		}
	}
	assert.GreaterOrEqual(t, finished, seeds*9/10, "most greedy matches should finish")
}

func TestSelfPlayMixedStrategies(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := randutil.New(seed)
		selfPlay(t, seed, NewBot(rng, quietLogger()), NewRandBot(rng, quietLogger()), 2000)
	}
}
