package deck

import rand "math/rand/v2"

// PackSize is the number of cards in a standard pack
const PackSize = 52

var pack = func() [PackSize]Card {
	var p [PackSize]Card
	i := 0
	for rank := Ace; rank <= King; rank++ {
		for _, suit := range Suits {
			p[i] = NewCard(rank, suit)
			i++
		}
	}
	return p
}()

// Pack returns a fresh copy of the 52 cards in canonical order
// (AC AS AH AD 2C ... KD).
func Pack() []Card {
	out := make([]Card, PackSize)
	copy(out, pack[:])
	return out
}

// Shuffle returns a uniformly random permutation of cards using Fisher-Yates
// on a private copy. The input slice is left untouched.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deck is a face-down sequence of cards consumed from the front
type Deck struct {
	cards []Card
}

// NewDeck creates a deck holding a shuffled pack
func NewDeck(rng *rand.Rand) *Deck {
	return &Deck{cards: Shuffle(pack[:], rng)}
}

// Deal removes and returns the top card from the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}

	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DealN deals up to n cards from the deck
func (d *Deck) DealN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}

	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards
}

// Remaining returns a copy of the undealt cards in order
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// IsEmpty returns true if the deck has no cards left
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Peek returns the top card without removing it from the deck
func (d *Deck) Peek() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	return d.cards[0], true
}
