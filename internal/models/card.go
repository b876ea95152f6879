// internal/models/card.go
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Card is a single planning poker card. The zero value is not a valid card.
//
// Numeric cards travel over the wire as JSON numbers (0, 0.5, 1, ... 100) and the
// "unknown" card travels as the string "?".
type Card string

const (
	Card0        Card = "0"
	CardHalf     Card = "0.5"
	Card1        Card = "1"
	Card2        Card = "2"
	Card3        Card = "3"
	Card5        Card = "5"
	Card8        Card = "8"
	Card13       Card = "13"
	Card21       Card = "21"
	Card34       Card = "34"
	Card55       Card = "55"
	Card100      Card = "100"
	CardQuestion Card = "?"
)

// Deck lists every card in display order.
var Deck = []Card{
	Card0, CardHalf, Card1, Card2, Card3, Card5, Card8,
	Card13, Card21, Card34, Card55, Card100, CardQuestion,
}

// ErrUnknownCard is returned when encoding a value outside the deck.
var ErrUnknownCard = errors.New("unknown card")

var validCards = func() map[Card]bool {
	m := make(map[Card]bool, len(Deck))
	for _, c := range Deck {
		m[c] = true
	}
	return m
}()

// Valid reports whether c belongs to the deck.
func (c Card) Valid() bool {
	return validCards[c]
}

func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrUnknownCard
	}
	if c == CardQuestion {
		return json.Marshal(string(c))
	}
	return []byte(c), nil
}

// UnmarshalJSON accepts a JSON string or number. Values outside the deck decode
// without error so the caller can answer with a proper "Invalid card" reply;
// check Valid before trusting the result.
func (c *Card) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Card(s)
		return nil
	}
	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		*c = Card(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	*c = Card(data)
	return nil
}
