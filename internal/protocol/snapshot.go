package protocol

import (
	"slices"

	"github.com/lox/crazyeights/internal/deck"
	"github.com/lox/crazyeights/internal/game"
)

// Snapshot is a full or partial serialization of game.State.
//
// Every state field is a pointer: nil means "unchanged", while a non-nil
// pointer carries the new value even when that value is zero, false or an
// empty pile. Seq is the state version after the change. Base is the
// version the delta was computed from and is nil for full snapshots.
type Snapshot struct {
	Seq  uint64  `json:"seq"`
	Base *uint64 `json:"base,omitempty"`

	Phase      *game.Phase  `json:"phase,omitempty"`
	Turn       *game.Player `json:"turn,omitempty"`
	Hand1      *[]deck.Card `json:"hand1,omitempty"`
	Hand2      *[]deck.Card `json:"hand2,omitempty"`
	DrawPile   *[]deck.Card `json:"drawPile,omitempty"`
	PlayedPile *[]deck.Card `json:"playedPile,omitempty"`
	ActiveSuit *deck.Suit   `json:"activeSuit,omitempty"`
	ActiveRank *deck.Rank   `json:"activeRank,omitempty"`
	DrawCount  *int         `json:"drawCount,omitempty"`
	// ChosenSuit is "" once a suit choice has been cleared.
	ChosenSuit   *string      `json:"chosenSuit,omitempty"`
	GameOver     *bool        `json:"gameOver,omitempty"`
	Winner       *game.Player `json:"winner,omitempty"`
	StartingCard *deck.Card   `json:"startingCard,omitempty"`
	Seed         *int64       `json:"seed,omitempty"`
	Reshuffles   *int         `json:"reshuffles,omitempty"`
}

// IsFull reports whether the snapshot replaces state rather than patching it
func (s Snapshot) IsFull() bool {
	return s.Base == nil
}

// FullSnapshot carries every field of st
func FullSnapshot(st game.State) Snapshot {
	return Snapshot{
		Seq:          st.Version,
		Phase:        ptr(st.Phase),
		Turn:         ptr(st.Turn),
		Hand1:        cardsPtr(st.Hand1),
		Hand2:        cardsPtr(st.Hand2),
		DrawPile:     cardsPtr(st.DrawPile),
		PlayedPile:   cardsPtr(st.PlayedPile),
		ActiveSuit:   ptr(st.ActiveSuit),
		ActiveRank:   ptr(st.ActiveRank),
		DrawCount:    ptr(st.DrawCount),
		ChosenSuit:   ptr(chosenSuitText(st.ChosenSuit)),
		GameOver:     ptr(st.GameOver),
		Winner:       ptr(st.Winner),
		StartingCard: ptr(st.StartingCard),
		Seed:         ptr(st.Seed),
		Reshuffles:   ptr(st.Reshuffles),
	}
}

// Diff returns a delta carrying only the fields that differ between prev and
// next.
func Diff(prev, next game.State) Snapshot {
	base := prev.Version
	d := Snapshot{Seq: next.Version, Base: &base}

	if prev.Phase != next.Phase {
		d.Phase = ptr(next.Phase)
	}
	if prev.Turn != next.Turn {
		d.Turn = ptr(next.Turn)
	}
	if !slices.Equal(prev.Hand1, next.Hand1) {
		d.Hand1 = cardsPtr(next.Hand1)
	}
	if !slices.Equal(prev.Hand2, next.Hand2) {
		d.Hand2 = cardsPtr(next.Hand2)
	}
	if !slices.Equal(prev.DrawPile, next.DrawPile) {
		d.DrawPile = cardsPtr(next.DrawPile)
	}
	if !slices.Equal(prev.PlayedPile, next.PlayedPile) {
		d.PlayedPile = cardsPtr(next.PlayedPile)
	}
	if prev.ActiveSuit != next.ActiveSuit {
		d.ActiveSuit = ptr(next.ActiveSuit)
	}
	if prev.ActiveRank != next.ActiveRank {
		d.ActiveRank = ptr(next.ActiveRank)
	}
	if prev.DrawCount != next.DrawCount {
		d.DrawCount = ptr(next.DrawCount)
	}
	if a, b := chosenSuitText(prev.ChosenSuit), chosenSuitText(next.ChosenSuit); a != b {
		d.ChosenSuit = ptr(b)
	}
	if prev.GameOver != next.GameOver {
		d.GameOver = ptr(next.GameOver)
	}
	if prev.Winner != next.Winner {
		d.Winner = ptr(next.Winner)
	}
	if prev.StartingCard != next.StartingCard {
		d.StartingCard = ptr(next.StartingCard)
	}
	if prev.Seed != next.Seed {
		d.Seed = ptr(next.Seed)
	}
	if prev.Reshuffles != next.Reshuffles {
		d.Reshuffles = ptr(next.Reshuffles)
	}
	return d
}

// MergeInto returns a copy of st with every present field of s applied and
// Version set to s.Seq. A full snapshot is merged onto the zero State so no
// field of st survives. The result is not validated.
func (s Snapshot) MergeInto(st game.State) (game.State, error) {
	var out game.State
	if !s.IsFull() {
		out = st.Clone()
	}

	if s.Phase != nil {
		out.Phase = *s.Phase
	}
	if s.Turn != nil {
		out.Turn = *s.Turn
	}
	if s.Hand1 != nil {
		out.Hand1 = slices.Clone(*s.Hand1)
	}
	if s.Hand2 != nil {
		out.Hand2 = slices.Clone(*s.Hand2)
	}
	if s.DrawPile != nil {
		out.DrawPile = slices.Clone(*s.DrawPile)
	}
	if s.PlayedPile != nil {
		out.PlayedPile = slices.Clone(*s.PlayedPile)
	}
	if s.ActiveSuit != nil {
		out.ActiveSuit = *s.ActiveSuit
	}
	if s.ActiveRank != nil {
		out.ActiveRank = *s.ActiveRank
	}
	if s.DrawCount != nil {
		out.DrawCount = *s.DrawCount
	}
	if s.ChosenSuit != nil {
		if *s.ChosenSuit == "" {
			out.ChosenSuit = nil
		} else {
			suit, err := deck.ParseSuit(*s.ChosenSuit)
			if err != nil {
				return st, err
			}
			out.ChosenSuit = &suit
		}
	}
	if s.GameOver != nil {
		out.GameOver = *s.GameOver
	}
	if s.Winner != nil {
		out.Winner = *s.Winner
	}
	if s.StartingCard != nil {
		out.StartingCard = *s.StartingCard
	}
	if s.Seed != nil {
		out.Seed = *s.Seed
	}
	if s.Reshuffles != nil {
		out.Reshuffles = *s.Reshuffles
	}
	out.Version = s.Seq
	return out, nil
}

func chosenSuitText(s *deck.Suit) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func ptr[T any](v T) *T {
	return &v
}

func cardsPtr(cards []deck.Card) *[]deck.Card {
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	return &out
}
