package game

import (
	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/randutil"
)

// Matches reports whether card may be played on a pile showing rank/suit:
// same rank, same suit, or an eight.
func Matches(card deck.Card, rank deck.Rank, suit deck.Suit) bool {
	return card.IsWild() || card.Rank == rank || card.Suit == suit
}

// Playable reports whether card may be played in s
func Playable(s State, card deck.Card) bool {
	return Matches(card, s.ActiveRank, s.ActiveSuit)
}

// LegalPlays returns the cards in the current player's hand that match the
// active rank or suit, or are eights, in hand order
func LegalPlays(s State) []deck.Card {
	var out []deck.Card
	for _, c := range s.CurrentHand() {
		if Playable(s, c) {
			out = append(out, c)
		}
	}
	return out
}

// Guards

func all(guards ...guard) guard {
	return func(s State, a Action) bool {
		for _, g := range guards {
			if !g(s, a) {
				return false
			}
		}
		return true
	}
}

func not(g guard) guard {
	return func(s State, a Action) bool { return !g(s, a) }
}

func singleCard(_ State, a Action) bool { return len(a.Cards) == 1 }

func multiCard(_ State, a Action) bool { return len(a.Cards) >= 2 }

// everyCardMatches checks each card against the pre-play active rank/suit,
// not against the other cards of the same play.
func everyCardMatches(s State, a Action) bool {
	for _, c := range a.Cards {
		if !Playable(s, c) {
			return false
		}
	}
	return len(a.Cards) > 0
}

func lastCardWild(_ State, a Action) bool {
	return len(a.Cards) > 0 && a.Cards[len(a.Cards)-1].IsWild()
}

func handHasNoPlayableCard(s State, _ Action) bool {
	return len(LegalPlays(s)) == 0
}

func validSuit(_ State, a Action) bool { return a.Suit.Valid() }

func drawsLeft(s State, _ Action) bool { return s.DrawCount < MaxExtraDraws }

func handEmpty(s State, _ Action) bool { return len(s.CurrentHand()) == 0 }

// Effects

func recordStartingCard(s *State, _ Action) {
	if top, ok := s.Top(); ok {
		s.StartingCard = top
		s.ActiveRank = top.Rank
		s.ActiveSuit = top.Suit
	}
}

func drawOne(s *State, _ Action) {
	card, ok := takeFromDrawPile(s)
	if !ok {
		return
	}
	setHand(s, s.Turn, append(s.CurrentHand(), card))
}

func drawExtra(s *State, a Action) {
	drawOne(s, a)
	s.DrawCount++
}

func playCards(s *State, a Action) {
	hand := s.CurrentHand()
	for _, c := range a.Cards {
		hand = removeCard(hand, c)
		s.PlayedPile = append(s.PlayedPile, c)
	}
	setHand(s, s.Turn, hand)

	top := a.Cards[len(a.Cards)-1]
	s.ActiveRank = top.Rank
	s.ActiveSuit = top.Suit
	s.ChosenSuit = nil
}

func chooseSuit(s *State, a Action) {
	suit := a.Suit
	s.ChosenSuit = &suit
	s.ActiveSuit = suit
}

func declareWinner(s *State, _ Action) {
	s.GameOver = true
	s.Winner = s.Turn
}

func endMatch(s *State, _ Action) {
	s.GameOver = true
}

func passTurn(s *State, _ Action) {
	s.Turn = s.Turn.Other()
	s.DrawCount = 0
}

// takeFromDrawPile pops the front of the draw pile, first refilling it from
// the played pile (all but the top card) when it is empty.
func takeFromDrawPile(s *State) (deck.Card, bool) {
	if len(s.DrawPile) == 0 {
		reshuffle(s)
	}
	if len(s.DrawPile) == 0 {
		return deck.Card{}, false
	}
	card := s.DrawPile[0]
	s.DrawPile = s.DrawPile[1:]
	return card, true
}

func reshuffle(s *State) {
	if len(s.PlayedPile) < 2 {
		return
	}
	top := s.PlayedPile[len(s.PlayedPile)-1]
	under := s.PlayedPile[:len(s.PlayedPile)-1]

	s.Reshuffles++
	s.DrawPile = deck.Shuffle(under, randutil.Derive(s.Seed, s.Reshuffles))
	s.PlayedPile = []deck.Card{top}
}

func setHand(s *State, p Player, hand []deck.Card) {
	switch p {
	case Player1:
		s.Hand1 = hand
	case Player2:
		s.Hand2 = hand
	}
}

func removeCard(cards []deck.Card, c deck.Card) []deck.Card {
	i := indexOf(cards, c)
	if i < 0 {
		return cards
	}
	out := make([]deck.Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

func indexOf(cards []deck.Card, c deck.Card) int {
	for i, x := range cards {
		if x == c {
			return i
		}
	}
	return -1
}
