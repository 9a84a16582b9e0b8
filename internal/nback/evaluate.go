package nback

// Classify maps a decision on one trial to its signal-detection outcome.
// A trial that was not answerable counts as "not pressed".
func Classify(pressed, match bool) Outcome {
	switch {
	case pressed && match:
		return OutcomeHit
	case pressed:
		return OutcomeFalseAlarm
	case match:
		return OutcomeMiss
	default:
		return OutcomeCorrectRejection
	}
}
