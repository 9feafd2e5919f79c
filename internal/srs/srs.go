package srs

import "math"

// The scheduler follows the SM-2 spaced-repetition algorithm.
// Reference: https://www.supermemo.com/en/archives1990-2015/english/ol/sm2
const (
	// PassThreshold is the lowest quality score counted as a successful recall.
	PassThreshold = 3

	// DefaultEase is the easiness factor assigned to cards with no recorded ease.
	DefaultEase = 2.5

	// MinEase is the floor for the easiness factor. SM-2 never lets it drop
	// below 1.3; there is no ceiling.
	MinEase = 1.3
)

// Quality is the user's self-reported recall quality for a review, 0-5.
type Quality int

const (
	// QualityBlackout: complete blackout, no recall at all.
	QualityBlackout Quality = 0
	// QualityIncorrect: incorrect, but the correct answer was remembered once seen.
	QualityIncorrect Quality = 1
	// QualityIncorrectEasy: incorrect, but the correct answer seemed easy to recall.
	QualityIncorrectEasy Quality = 2
	// QualityDifficult: correct, recalled with serious difficulty.
	QualityDifficult Quality = 3
	// QualityHesitant: correct after some hesitation.
	QualityHesitant Quality = 4
	// QualityPerfect: perfect recall.
	QualityPerfect Quality = 5
)

// NextReview computes the next scheduling state for a card from a single
// review outcome. It is a pure function: no clock, no I/O, identical inputs
// always produce identical outputs.
//
// level is the card's current repetition level (1-based), lastInterval the
// interval in days that most recently applied to the card (only consulted
// when level >= 3), and ease its easiness factor.
//
// On a successful recall (quality >= PassThreshold) the interval is 1 day at
// level 1 and 6 days at level 2 regardless of ease; from level 3 on it is
// round(lastInterval * ease), rounding half away from zero (math.Round).
// The ease factor then gets the quadratic SM-2 adjustment
//
//	ease += 0.1 - (5-q)*(0.08 + (5-q)*0.02)
//
// clamped to MinEase, and the level advances by one.
//
// On a failed recall the card drops back to level 1 with a 1 day interval.
// The ease factor is deliberately left untouched on failure; textbook SM-2
// penalizes it, this scheduler does not.
//
// Callers must validate quality to [0, 5] before calling; NextReview itself
// performs no validation and never fails.
func NextReview(quality Quality, level, lastInterval int, ease float64) (newLevel, intervalDays int, newEase float64) {
	if quality < PassThreshold {
		return 1, 1, ease
	}

	switch {
	case level == 1:
		intervalDays = 1
	case level == 2:
		intervalDays = 6
	default:
		intervalDays = int(math.Round(float64(lastInterval) * ease))
	}

	q := float64(quality)
	ease += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if ease < MinEase {
		ease = MinEase
	}

	return level + 1, intervalDays, ease
}

// DefaultInterval returns the assumed prior interval for a card at the given
// level, for callers that persist only the level and not the interval
// history: 1 day up to level 1, 6 days at level 2, and a fixed 10 days from
// level 3 on.
//
// The flat 10 is a deliberate approximation of the true historical interval.
// It trades some accuracy in ease-driven growth for not persisting interval
// history, and it must stay as-is: changing it changes the review cadence of
// every existing card.
func DefaultInterval(level int) int {
	switch {
	case level <= 1:
		return 1
	case level == 2:
		return 6
	default:
		return 10
	}
}
