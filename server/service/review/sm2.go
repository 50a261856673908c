package review

import (
	"math"
)

const (
	// initialEaseFactor is the ease a new card starts with (stored x1000).
	initialEaseFactor = 2500
	// minEaseFactor is the floor the ease factor never drops below.
	minEaseFactor = 1300
)

// QualityFromScore maps a numeric case score onto the 0-5 recall
// quality scale. Case scores can be negative.
func QualityFromScore(score int32) int32 {
	switch {
	case score > 20:
		return 5
	case score > 10:
		return 4
	case score > 0:
		return 3
	case score > -10:
		return 2
	case score > -20:
		return 1
	default:
		return 0
	}
}

// QualityFromCorrect maps a single-best-answer outcome onto the 0-5
// quality scale.
func QualityFromCorrect(correct bool) int32 {
	if correct {
		return 5
	}
	return 2
}

// advance applies one review of the given quality to a card's
// (repetitions, easeFactor, interval) state and returns the new state.
//
// quality >= 3 is a successful recall: repetitions increments, the
// interval grows 1 -> 6 -> round(interval x ease/1000), and the ease
// factor is adjusted, never below minEaseFactor. quality < 3 resets
// repetitions and interval but leaves the ease factor unchanged.
func advance(repetitions, easeFactor, interval, quality int32) (int32, int32, int32) {
	if quality < 3 {
		return 0, easeFactor, 1
	}

	repetitions++
	switch repetitions {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		interval = int32(math.Round(float64(interval) * float64(easeFactor) / 1000))
	}

	q := float64(5 - quality)
	easeFactor = int32(math.Round(float64(easeFactor) + 100*(3.6-q*(0.08+q*0.02))))
	if easeFactor < minEaseFactor {
		easeFactor = minEaseFactor
	}

	return repetitions, easeFactor, interval
}
