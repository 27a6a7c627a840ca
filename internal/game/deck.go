package game

// Card pairs a picture with the word the child should say.
type Card struct {
	Word  string
	Image string
}

// DefaultDeck returns the standard practice deck.
func DefaultDeck() []Card {
	words := []string{
		"apple", "baby", "banana", "bathtub", "bed",
		"book", "can", "comb", "cup", "dog", "flower",
	}
	deck := make([]Card, 0, len(words))
	for _, w := range words {
		deck = append(deck, Card{Word: w, Image: "/assets/" + w + ".png"})
	}
	return deck
}
