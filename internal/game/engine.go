package game

import (
	"fmt"

	"github.com/lox/crazyeights/internal/deck"
)

// guard is a strict predicate over the pre-transition state
type guard func(s State, a Action) bool

// effect mutates the already-cloned next state
type effect func(s *State, a Action)

type transition struct {
	from   Phase
	on     Trigger
	when   guard
	to     Phase
	effect effect
}

// transitions is evaluated top to bottom; the first row whose phase, trigger
// and guard all match wins.
var transitions = []transition{
	{from: PhaseStart, on: TriggerStart, to: PhaseDrawCard, effect: recordStartingCard},

	{from: PhaseDrawCard, on: TriggerDraw, to: PhasePlayCard, effect: drawOne},

	{from: PhasePlayCard, on: TriggerPlay, when: all(multiCard, everyCardMatches, not(lastCardWild)), to: PhaseCheckCard, effect: playCards},
	{from: PhasePlayCard, on: TriggerPlay, when: all(multiCard, everyCardMatches, lastCardWild), to: PhaseChooseSuit, effect: playCards},
	{from: PhasePlayCard, on: TriggerPlay, when: all(singleCard, lastCardWild), to: PhaseChooseSuit, effect: playCards},
	{from: PhasePlayCard, on: TriggerPlay, when: all(singleCard, everyCardMatches), to: PhaseCheckCard, effect: playCards},
	{from: PhasePlayCard, on: TriggerPlay, when: handHasNoPlayableCard, to: PhaseDrawMoreCards},
	{from: PhasePlayCard, on: TriggerPlay, to: PhaseIllegalCard},

	{from: PhaseChooseSuit, on: TriggerSuit, when: validSuit, to: PhaseCheckCard, effect: chooseSuit},

	{from: PhaseCheckCard, on: TriggerLegal, to: PhaseNextTurn},
	{from: PhaseCheckCard, on: TriggerIllegal, to: PhaseDrawCard},

	{from: PhaseDrawMoreCards, on: TriggerDraw, when: drawsLeft, to: PhasePlayCard, effect: drawExtra},
	{from: PhaseDrawMoreCards, on: TriggerDraw, when: not(drawsLeft), to: PhasePassTurn},

	{from: PhasePassTurn, on: TriggerPass, to: PhaseNextTurn},

	{from: PhaseNextTurn, on: TriggerWin, when: handEmpty, to: PhaseGameOver, effect: declareWinner},
	{from: PhaseNextTurn, on: TriggerEnd, to: PhaseGameOver, effect: endMatch},
	{from: PhaseNextTurn, on: TriggerNext, when: not(handEmpty), to: PhaseDrawCard, effect: passTurn},

	{from: PhaseIllegalCard, on: TriggerDraw, to: PhasePlayCard, effect: drawOne},
}

// Apply runs a through the turn state machine. It never mutates s. On
// success it returns the next state with Version incremented; otherwise it
// returns s unchanged and an error wrapping ErrIllegalAction.
func Apply(s State, a Action) (State, error) {
	if s.GameOver || s.Phase == PhaseGameOver {
		return s, fmt.Errorf("%w: %s", ErrGameOver, a.Type)
	}
	if a.Player != NoPlayer && s.Phase != PhaseStart && a.Player != s.Turn {
		return s, fmt.Errorf("%w: %s is to act, not %s", ErrNotYourTurn, s.Turn, a.Player)
	}
	if a.Type == TriggerPlay && s.Phase == PhasePlayCard {
		if err := checkCardsHeld(s.CurrentHand(), a.Cards); err != nil {
			return s, err
		}
	}

	for _, t := range transitions {
		if t.from != s.Phase || t.on != a.Type {
			continue
		}
		if t.when != nil && !t.when(s, a) {
			continue
		}

		next := s.Clone()
		if t.effect != nil {
			t.effect(&next, a)
		}
		next.Phase = t.to
		next.Version++
		return next, nil
	}

	return s, fmt.Errorf("%w: %s in %s", ErrIllegalAction, a, s.Phase)
}

// Can reports whether a would be accepted in s
func Can(s State, a Action) bool {
	_, err := Apply(s, a)
	return err == nil
}

// Transitions returns the triggers accepted from s's phase, ignoring guards
func Transitions(s State) []Trigger {
	var out []Trigger
	for _, t := range transitions {
		if t.from != s.Phase {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == t.on {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t.on)
		}
	}
	return out
}

func checkCardsHeld(hand, cards []deck.Card) error {
	if len(cards) == 0 {
		return fmt.Errorf("%w: no cards played", ErrIllegalAction)
	}
	seen := make(map[deck.Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return fmt.Errorf("%w: %s played twice", ErrIllegalAction, c)
		}
		seen[c] = true
		if indexOf(hand, c) < 0 {
			return fmt.Errorf("%w: %s", ErrCardNotInHand, c)
		}
	}
	return nil
}
