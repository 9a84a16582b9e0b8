package nback

import "math"

const (
	hitPoints              = 1.0
	correctRejectionPoints = 0.5
)

func Score(c Counters) float64 {
	return float64(c.Hits)*hitPoints + float64(c.CorrectRejections)*correctRejectionPoints
}

// Accuracy is the percentage of correct decisions, 0 when nothing was classified.
func Accuracy(c Counters) int {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(c.Hits+c.CorrectRejections) / float64(total)))
}
