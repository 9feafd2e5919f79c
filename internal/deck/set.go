package deck

import (
	"sort"
	"time"

	"github.com/lukas-hzb/verve/internal/srs"
)

// Set is a named, ordered collection of cards. Names are unique across the
// application; fronts are unique within a set.
//
// A Set is not safe for concurrent mutation; the caller is expected to
// serialize writers (the web layer holds a lock across load-modify-store).
type Set struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Cards     []*Card   `json:"cards"`
}

// Stats summarizes the scheduling state of a set.
type Stats struct {
	TotalCards  int         `json:"total_cards"`
	LevelCounts map[int]int `json:"level_counts"`
	DueCards    int         `json:"due_cards"`
}

// ReviewResult reports the outcome of applying a review to a card, in the
// shape the API surfaces to the user ("level went from 2 to 3, next review
// in 6 days").
type ReviewResult struct {
	OldLevel     int
	NewLevel     int
	IntervalDays int
	Card         *Card
}

// Entry is one front/back pair from an import source, before it carries any
// scheduling state.
type Entry struct {
	Front string
	Back  string
}

// FindCard returns the card with the given front text, or nil.
func (s *Set) FindCard(front string) *Card {
	for _, c := range s.Cards {
		if c.Front == front {
			return c
		}
	}
	return nil
}

// AddCard appends a new card at level 1, immediately due. The front must not
// already exist in the set.
func (s *Set) AddCard(front, back string, now time.Time) (*Card, error) {
	if s.FindCard(front) != nil {
		return nil, ErrDuplicateCard
	}
	card := &Card{
		Front:      front,
		Back:       back,
		Level:      1,
		NextReview: now,
	}
	s.Cards = append(s.Cards, card)
	s.UpdatedAt = now
	return card, nil
}

// DueCards returns the cards whose next review time has been reached, sorted
// ascending by shuffle order. Cards without a shuffle order come after all
// cards that have one, keeping their relative insertion order.
func (s *Set) DueCards(now time.Time) []*Card {
	var due []*Card
	for _, c := range s.Cards {
		if c.Due(now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].ShuffleOrder, due[j].ShuffleOrder
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return due
}

// Statistics derives the set's aggregate counts in a single pass.
func (s *Set) Statistics(now time.Time) Stats {
	stats := Stats{
		TotalCards:  len(s.Cards),
		LevelCounts: make(map[int]int),
	}
	for _, c := range s.Cards {
		stats.LevelCounts[c.Level]++
		if c.Due(now) {
			stats.DueCards++
		}
	}
	return stats
}

// ApplyReview advances the card identified by front through the scheduler
// with the given quality score and reschedules it relative to now.
//
// The prior interval is reconstructed from the card's level via
// srs.DefaultInterval and the ease factor is seeded at srs.DefaultEase on
// every call; neither is persisted per card.
func (s *Set) ApplyReview(front string, quality srs.Quality, now time.Time) (ReviewResult, error) {
	card := s.FindCard(front)
	if card == nil {
		return ReviewResult{}, ErrCardNotFound
	}

	oldLevel := card.Level
	lastInterval := srs.DefaultInterval(oldLevel)
	newLevel, intervalDays, _ := srs.NextReview(quality, oldLevel, lastInterval, srs.DefaultEase)

	card.Level = newLevel
	card.NextReview = now.AddDate(0, 0, intervalDays)
	s.UpdatedAt = now

	return ReviewResult{
		OldLevel:     oldLevel,
		NewLevel:     newLevel,
		IntervalDays: intervalDays,
		Card:         card,
	}, nil
}

// RestoreCard force-sets a card's level and next review time. It is the
// inverse of ApplyReview's mutation, used to undo the most recent review:
// the caller must have snapshotted the pre-review state, no history is kept
// here.
func (s *Set) RestoreCard(front string, level int, nextReview, now time.Time) (*Card, error) {
	card := s.FindCard(front)
	if card == nil {
		return nil, ErrCardNotFound
	}
	card.Level = level
	card.NextReview = nextReview
	s.UpdatedAt = now
	return card, nil
}

// ResetAll puts every card back to level 1, immediately due.
func (s *Set) ResetAll(now time.Time) {
	for _, c := range s.Cards {
		c.Level = 1
		c.NextReview = now
	}
	s.UpdatedAt = now
}

// Merge adds the entries whose front text is not already present, each at
// level 1 and immediately due, and returns them. Existing cards keep their
// scheduling state untouched; a bulk import never clobbers review progress.
// Duplicate fronts within entries are collapsed to the first occurrence.
func (s *Set) Merge(entries []Entry, now time.Time) []*Card {
	var added []*Card
	for _, e := range entries {
		card, err := s.AddCard(e.Front, e.Back, now)
		if err != nil {
			continue // already present
		}
		added = append(added, card)
	}
	return added
}
