// Package game implements the Crazy Eights rules engine.
//
// The main type is State, an immutable value describing one two-player match:
// both hands, the draw pile, the played pile, whose turn it is and which phase
// of the turn state machine the match is in. Transitions are computed by the
// pure function Apply, which never mutates its input.
//
// # Basic Usage
//
//	s := game.Deal(seed)
//	s, err := game.Apply(s, game.Draw(game.Player1))
//	s, err = game.Apply(s, game.Play(game.Player1, card))
//	if errors.Is(err, game.ErrIllegalAction) {
//	    // state is unchanged; tell the player
//	}
//
// # Turn State Machine
//
// A turn runs drawCard -> playCard -> checkCard -> nextTurn. Playing an eight
// detours through chooseSuit. A player with nothing playable is sent to
// drawMoreCards (up to three draws) and then passTurn. From nextTurn the
// player either claims the win (WIN, empty hand), hands over the turn (NEXT)
// or abandons the match (END).
//
// # Deterministic Reshuffles
//
// Every State carries the seed it was dealt from. When the draw pile runs
// dry the played pile (minus its top card) is reshuffled with a generator
// derived from that seed and the reshuffle count, so two engines replaying
// the same transitions always agree on the new draw pile.
package game
