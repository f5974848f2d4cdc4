package service

import "math"

// ScoreWindow is the reference answering window in seconds. Answers
// faster than the window earn the remaining seconds as points.
const ScoreWindow = 30

// ScoreDelta maps correctness and elapsed time to the points awarded.
// A correct answer is worth max(1, floor(30 - timeTaken)): speed pays,
// but any correct answer scores at least one point no matter how late.
// Negative elapsed time is clamped before use.
func ScoreDelta(isCorrect bool, timeTaken float64) int {
	if !isCorrect {
		return 0
	}
	if timeTaken < 0 {
		timeTaken = 0
	}
	delta := int(math.Floor(ScoreWindow - timeTaken))
	if delta < 1 {
		delta = 1
	}
	return delta
}
