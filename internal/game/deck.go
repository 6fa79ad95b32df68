package game

import "math/rand"

// Deck is a stack of card texts consumed from the tail.
type Deck []string

func NewDeck(cards []string, rng *rand.Rand) Deck {
	deck := append(Deck(nil), cards...)
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

func (d Deck) Len() int {
	return len(d)
}

func (d *Deck) Pop() (string, bool) {
	if len(*d) == 0 {
		return "", false
	}
	last := len(*d) - 1
	card := (*d)[last]
	*d = (*d)[:last]
	return card, true
}

// Draw pops the next card or returns fallback once the deck is exhausted.
func (d *Deck) Draw(fallback string) string {
	if card, ok := d.Pop(); ok {
		return card
	}
	return fallback
}

// Deal pops up to n cards.
func (d *Deck) Deal(n int) []string {
	cards := make([]string, 0, n)
	for len(cards) < n {
		card, ok := d.Pop()
		if !ok {
			break
		}
		cards = append(cards, card)
	}
	return cards
}
