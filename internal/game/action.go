package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/crazyeights/internal/deck"
)

var (
	// ErrIllegalAction is returned for any action the current state does not
	// accept. The state is left unchanged.
	ErrIllegalAction = errors.New("illegal action")

	// ErrNotYourTurn is returned when the acting player does not hold the turn
	ErrNotYourTurn = fmt.Errorf("%w: not your turn", ErrIllegalAction)

	// ErrGameOver is returned for any action after the match has ended
	ErrGameOver = fmt.Errorf("%w: game over", ErrIllegalAction)

	// ErrCardNotInHand is returned when a play names a card the player lacks
	ErrCardNotInHand = fmt.Errorf("%w: card not in hand", ErrIllegalAction)
)

// Trigger names an event of the turn state machine
type Trigger string

const (
	TriggerStart   Trigger = "START"
	TriggerDraw    Trigger = "DRAW"
	TriggerPlay    Trigger = "PLAY"
	TriggerSuit    Trigger = "SUIT"
	TriggerLegal   Trigger = "LEGAL"
	TriggerIllegal Trigger = "ILLEGAL"
	TriggerPass    Trigger = "PASS"
	TriggerEnd     Trigger = "END"
	TriggerWin     Trigger = "WIN"
	TriggerNext    Trigger = "NEXT"
)

// Action is a proposed transition. Player is the participant asking for it;
// NoPlayer skips the turn-ownership check.
type Action struct {
	Type   Trigger     `json:"type"`
	Player Player      `json:"player,omitempty"`
	Cards  []deck.Card `json:"cards,omitempty"`
	Suit   deck.Suit   `json:"suit,omitempty"`
}

func (a Action) String() string {
	var b strings.Builder
	b.WriteString(string(a.Type))
	switch a.Type {
	case TriggerPlay:
		b.WriteString("(" + deck.FormatCards(a.Cards) + ")")
	case TriggerSuit:
		b.WriteString("(" + a.Suit.String() + ")")
	}
	if a.Player != NoPlayer {
		b.WriteString(" by " + a.Player.String())
	}
	return b.String()
}

// Start begins a prepared match
func Start() Action { return Action{Type: TriggerStart} }

// Draw takes the top card of the draw pile
func Draw(p Player) Action { return Action{Type: TriggerDraw, Player: p} }

// Play plays one or more cards from the player's hand
func Play(p Player, cards ...deck.Card) Action {
	return Action{Type: TriggerPlay, Player: p, Cards: cards}
}

// ChooseSuit names the suit after an eight
func ChooseSuit(p Player, s deck.Suit) Action {
	return Action{Type: TriggerSuit, Player: p, Suit: s}
}

// Legal confirms a checked play
func Legal(p Player) Action { return Action{Type: TriggerLegal, Player: p} }

// Illegal rejects a checked play
func Illegal(p Player) Action { return Action{Type: TriggerIllegal, Player: p} }

// Pass gives up the turn after the extra draws ran out
func Pass(p Player) Action { return Action{Type: TriggerPass, Player: p} }

// End abandons the match without a winner
func End(p Player) Action { return Action{Type: TriggerEnd, Player: p} }

// Win claims the match once the player's hand is empty
func Win(p Player) Action { return Action{Type: TriggerWin, Player: p} }

// Next hands the turn to the opponent
func Next(p Player) Action { return Action{Type: TriggerNext, Player: p} }
