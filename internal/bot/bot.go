package bot

import (
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
)

// Bot sheds as many cards as it can each turn. Every card that matches the
// active rank or suit is played in one go, with any eights last so the bot
// keeps control of the suit.
type Bot struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewBot creates a new greedy bot
func NewBot(rng *rand.Rand, logger *log.Logger) *Bot {
	return &Bot{
		rng:    rng,
		logger: logger.WithPrefix("bot"),
	}
}

// Decide implements Strategy
func (b *Bot) Decide(st game.State, me game.Player) (game.Action, bool) {
	if !myTurn(st, me) {
		return game.Action{}, false
	}

	switch st.Phase {
	case game.PhasePlayCard:
		play := b.choosePlay(st)
		b.logger.Debug("Bot decision made", "player", me, "play", deck.FormatCards(play), "hand", len(st.Hand(me)))
		return game.Play(me, play...), true

	case game.PhaseChooseSuit:
		suit := b.chooseSuit(st.Hand(me), st.ActiveSuit)
		b.logger.Debug("Bot chose suit", "player", me, "suit", suit)
		return game.ChooseSuit(me, suit), true
	}

	return forced(st, me)
}

// choosePlay returns every legal card, eights last. With nothing legal it
// offers the first card, which sends the engine into the extra-draw phase.
func (b *Bot) choosePlay(st game.State) []deck.Card {
	legal := game.LegalPlays(st)
	if len(legal) == 0 {
		return []deck.Card{st.CurrentHand()[0]}
	}

	var plain, wild []deck.Card
	for _, c := range legal {
		if c.IsWild() {
			wild = append(wild, c)
		} else {
			plain = append(plain, c)
		}
	}
	b.rng.Shuffle(len(plain), func(i, j int) { plain[i], plain[j] = plain[j], plain[i] })
	return append(plain, wild...)
}

// chooseSuit names the suit the bot holds most of, ignoring eights
func (b *Bot) chooseSuit(hand []deck.Card, fallback deck.Suit) deck.Suit {
	var counts [4]int
	for _, c := range hand {
		if !c.IsWild() {
			counts[c.Suit]++
		}
	}

	best, bestCount := fallback, 0
	for _, s := range deck.Suits {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best
}
