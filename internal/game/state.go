package game

import (
	"fmt"
	"slices"

	"github.com/lox/crazyeights/internal/deck"
)

// HandSize is the number of cards dealt to each player
const HandSize = 8

// MaxExtraDraws is how many cards a player without a legal card may draw
// before the turn is passed
const MaxExtraDraws = 3

// Phase is a node of the turn state machine
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseDrawCard      Phase = "game.drawCard"
	PhasePlayCard      Phase = "game.playCard"
	PhaseChooseSuit    Phase = "game.chooseSuit"
	PhaseCheckCard     Phase = "game.checkCard"
	PhaseDrawMoreCards Phase = "game.drawMoreCards"
	PhasePassTurn      Phase = "game.passTurn"
	PhaseNextTurn      Phase = "game.nextTurn"
	PhaseIllegalCard   Phase = "game.illegalCard"
	PhaseGameOver      Phase = "gameOver"
)

var phases = []Phase{
	PhaseStart, PhaseDrawCard, PhasePlayCard, PhaseChooseSuit, PhaseCheckCard,
	PhaseDrawMoreCards, PhasePassTurn, PhaseNextTurn, PhaseIllegalCard, PhaseGameOver,
}

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	return slices.Contains(phases, p)
}

func (p Phase) String() string {
	return string(p)
}

// Player identifies one of the two seats
type Player int

const (
	NoPlayer Player = iota
	Player1
	Player2
)

// String returns the display name of the player
func (p Player) String() string {
	switch p {
	case Player1:
		return "Player 1"
	case Player2:
		return "Player 2"
	default:
		return ""
	}
}

// Other returns the opponent
func (p Player) Other() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return NoPlayer
	}
}

// Valid reports whether p is Player1 or Player2
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

// MarshalText encodes the player as its display name
func (p Player) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a display name; the empty string is NoPlayer
func (p *Player) UnmarshalText(text []byte) error {
	parsed, err := ParsePlayer(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlayer parses "Player 1", "Player 2" or the shorthand "1"/"2"
func ParsePlayer(str string) (Player, error) {
	switch str {
	case "":
		return NoPlayer, nil
	case "Player 1", "player1", "1":
		return Player1, nil
	case "Player 2", "player2", "2":
		return Player2, nil
	}
	return NoPlayer, fmt.Errorf("invalid player %q", str)
}

// State is one match of Crazy Eights. Values are treated as immutable: every
// transition returns a new State with its own slices.
type State struct {
	Phase      Phase
	Turn       Player
	Hand1      []deck.Card
	Hand2      []deck.Card
	DrawPile   []deck.Card
	PlayedPile []deck.Card

	ActiveSuit deck.Suit
	ActiveRank deck.Rank
	DrawCount  int
	// ChosenSuit is set while an eight's suit choice overrides ActiveSuit.
	ChosenSuit *deck.Suit

	GameOver bool
	Winner   Player

	StartingCard deck.Card
	Seed         int64
	Reshuffles   int
	// Version counts applied transitions and doubles as the replication
	// sequence number.
	Version uint64
}

// Hand returns the hand owned by player
func (s State) Hand(p Player) []deck.Card {
	switch p {
	case Player1:
		return s.Hand1
	case Player2:
		return s.Hand2
	default:
		return nil
	}
}

// CurrentHand returns the hand of the player whose turn it is
func (s State) CurrentHand() []deck.Card {
	return s.Hand(s.Turn)
}

// Top returns the top of the played pile
func (s State) Top() (deck.Card, bool) {
	if len(s.PlayedPile) == 0 {
		return deck.Card{}, false
	}
	return s.PlayedPile[len(s.PlayedPile)-1], true
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	c := s
	c.Hand1 = cloneCards(s.Hand1)
	c.Hand2 = cloneCards(s.Hand2)
	c.DrawPile = cloneCards(s.DrawPile)
	c.PlayedPile = cloneCards(s.PlayedPile)
	if s.ChosenSuit != nil {
		suit := *s.ChosenSuit
		c.ChosenSuit = &suit
	}
	return c
}

// Equal reports whether two states are identical. Nil and empty piles
// compare equal.
func (s State) Equal(o State) bool {
	if s.Phase != o.Phase || s.Turn != o.Turn ||
		s.ActiveSuit != o.ActiveSuit || s.ActiveRank != o.ActiveRank ||
		s.DrawCount != o.DrawCount || s.GameOver != o.GameOver ||
		s.Winner != o.Winner || s.StartingCard != o.StartingCard ||
		s.Seed != o.Seed || s.Reshuffles != o.Reshuffles || s.Version != o.Version {
		return false
	}
	if (s.ChosenSuit == nil) != (o.ChosenSuit == nil) {
		return false
	}
	if s.ChosenSuit != nil && *s.ChosenSuit != *o.ChosenSuit {
		return false
	}
	return slices.Equal(s.Hand1, o.Hand1) &&
		slices.Equal(s.Hand2, o.Hand2) &&
		slices.Equal(s.DrawPile, o.DrawPile) &&
		slices.Equal(s.PlayedPile, o.PlayedPile)
}

// Validate checks the closed-world invariant (every card of the pack appears
// exactly once across both hands and both piles) together with the
// structural fields a snapshot must carry.
func (s State) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	if !s.Turn.Valid() {
		return fmt.Errorf("invalid turn %d", int(s.Turn))
	}
	if s.Winner != NoPlayer && !s.Winner.Valid() {
		return fmt.Errorf("invalid winner %d", int(s.Winner))
	}
	if s.DrawCount < 0 || s.DrawCount > MaxExtraDraws {
		return fmt.Errorf("draw count %d out of range", s.DrawCount)
	}

	var seen [deck.PackSize]bool
	total := 0
	piles := []struct {
		name  string
		cards []deck.Card
	}{
		{"hand1", s.Hand1},
		{"hand2", s.Hand2},
		{"drawPile", s.DrawPile},
		{"playedPile", s.PlayedPile},
	}
	for _, pile := range piles {
		for _, c := range pile.cards {
			if !c.Valid() {
				return fmt.Errorf("%s: invalid card %d/%d", pile.name, int(c.Rank), int(c.Suit))
			}
			if seen[c.Index()] {
				return fmt.Errorf("%s: duplicate card %s", pile.name, c)
			}
			seen[c.Index()] = true
			total++
		}
	}
	if total != deck.PackSize {
		return fmt.Errorf("card count %d, want %d", total, deck.PackSize)
	}

	top, ok := s.Top()
	if !ok {
		return fmt.Errorf("played pile is empty")
	}
	if s.ActiveRank != top.Rank {
		return fmt.Errorf("active rank %s does not match top card %s", s.ActiveRank, top)
	}
	want := top.Suit
	if s.ChosenSuit != nil {
		want = *s.ChosenSuit
	}
	if s.ActiveSuit != want {
		return fmt.Errorf("active suit %s, want %s", s.ActiveSuit, want)
	}
	return nil
}

func (s State) String() string {
	top, _ := s.Top()
	return fmt.Sprintf("%s turn=%s top=%s suit=%s hand1=%d hand2=%d draw=%d v=%d",
		s.Phase, s.Turn, top, s.ActiveSuit, len(s.Hand1), len(s.Hand2), len(s.DrawPile), s.Version)
}

func cloneCards(cards []deck.Card) []deck.Card {
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	return out
}
