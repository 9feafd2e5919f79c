package deck

import "time"

// Card is a single front/back flashcard together with its scheduling state.
// Front doubles as the card's key: it is unique within a Set.
type Card struct {
	ID    int64  `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`

	// Level counts consecutive successful reviews since the last reset, 1-based.
	Level int `json:"level"`
	// NextReview is the instant the card becomes due again.
	NextReview time.Time `json:"next_review"`
	// ShuffleOrder is an optional fixed practice position. Cards without one
	// sort after all cards that have one.
	ShuffleOrder *int `json:"shuffle_order,omitempty"`
}

// Due reports whether the card is eligible for review at the given time.
func (c *Card) Due(now time.Time) bool {
	return !c.NextReview.After(now)
}
