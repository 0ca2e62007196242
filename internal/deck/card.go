package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Spades
	Hearts
	Diamonds
)

// Suits lists every suit in pack order
var Suits = [4]Suit{Clubs, Spades, Hearts, Diamonds}

// String returns the single letter form of a suit (C, S, H, D)
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "C"
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	default:
		return "?"
	}
}

// Symbol returns the unicode symbol for a suit
func (s Suit) Symbol() string {
	switch s {
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Valid reports whether s is one of the four suits
func (s Suit) Valid() bool {
	return s >= Clubs && s <= Diamonds
}

// MarshalText encodes a suit as its letter
func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a suit letter
func (s *Suit) UnmarshalText(text []byte) error {
	parsed, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit parses a suit letter or symbol, case insensitive
func ParseSuit(str string) (Suit, error) {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case "C", "♣", "CLUBS":
		return Clubs, nil
	case "S", "♠", "SPADES":
		return Spades, nil
	case "H", "♥", "HEARTS":
		return Hearts, nil
	case "D", "♦", "DIAMONDS":
		return Diamonds, nil
	}
	return 0, fmt.Errorf("invalid suit %q", str)
}

// Rank represents a card rank. Aces are low.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

const rankLetters = "A23456789TJQK"

// String returns the single character form of a rank
func (r Rank) String() string {
	if !r.Valid() {
		return "?"
	}
	return string(rankLetters[r-1])
}

// Valid reports whether r is between Ace and King
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// ParseRank parses a rank character. "10" is accepted for Ten.
func ParseRank(str string) (Rank, error) {
	str = strings.ToUpper(strings.TrimSpace(str))
	if str == "10" {
		return Ten, nil
	}
	if len(str) != 1 {
		return 0, fmt.Errorf("invalid rank %q", str)
	}
	idx := strings.IndexByte(rankLetters, str[0])
	if idx < 0 {
		return 0, fmt.Errorf("invalid rank %q", str)
	}
	return Rank(idx + 1), nil
}

// Card represents a playing card
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the two letter form of a card (e.g., "8H")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Pretty returns the card with a suit symbol (e.g., "8♥")
func (c Card) Pretty() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsWild returns true for eights
func (c Card) IsWild() bool {
	return c.Rank == Eight
}

// Valid reports whether both rank and suit are in range
func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

// Index returns the card's position in the canonical pack, 0..51
func (c Card) Index() int {
	return int(c.Rank-1)*4 + int(c.Suit)
}

// MarshalText encodes a card as its two letter form
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %d/%d", int(c.Rank), int(c.Suit))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes the two letter form of a card
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses a card like "8H", "th" or "10S"
func ParseCard(str string) (Card, error) {
	str = strings.TrimSpace(str)
	if len(str) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", str)
	}
	rank, err := ParseRank(str[:len(str)-1])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", str, err)
	}
	suit, err := ParseSuit(str[len(str)-1:])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", str, err)
	}
	return NewCard(rank, suit), nil
}

// ParseCards parses whitespace or comma separated cards ("8H 5S"), or a
// concatenated run of two letter cards ("8H5S").
func ParseCards(str string) ([]Card, error) {
	fields := strings.FieldsFunc(str, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(fields) == 1 && len(fields[0]) > 3 {
		run := fields[0]
		if len(run)%2 != 0 {
			return nil, fmt.Errorf("invalid card string %q", str)
		}
		fields = fields[:0]
		for i := 0; i < len(run); i += 2 {
			fields = append(fields, run[i:i+2])
		}
	}

	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		card, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// MustParseCards is ParseCards for tests and constants; it panics on error
func MustParseCards(str string) []Card {
	cards, err := ParseCards(str)
	if err != nil {
		panic(err)
	}
	return cards
}

// FormatCards joins cards with spaces
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
