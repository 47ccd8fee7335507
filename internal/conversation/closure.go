package conversation

import "strings"

var closingPhrases = []string{
	"thank you",
	"thanks",
	"that's all",
	"that is all",
	"i'm done",
	"im done",
	"bye",
	"goodbye",
	"that's enough",
	"that was helpful",
	"got it",
	"appreciate it",
}

// LearnerWantsToClose reports whether text contains a closing phrase
// (case-insensitive substring match).
func LearnerWantsToClose(text string) bool {
	normalized := strings.ToLower(text)
	for _, p := range closingPhrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// DetectClosure reports whether the partner should wrap up: the learner used a
// closing phrase or the learner-turn budget is used up.
func DetectClosure(latestText string, userTurns, maxUserTurns int) bool {
	return LearnerWantsToClose(latestText) || (maxUserTurns > 0 && userTurns >= maxUserTurns)
}
