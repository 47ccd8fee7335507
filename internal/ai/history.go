package ai

import (
	"strings"

	"speakup/internal/model"
)

// HistoryLines renders messages as "Learner: ..." / "AI: ..." lines in order.
// The raw transcript is preferred over content when present.
func HistoryLines(messages []model.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "AI"
		if m.Role == model.RoleUser {
			speaker = "Learner"
		}
		text := m.Content
		if m.Transcript != nil {
			text = *m.Transcript
		}
		lines = append(lines, strings.TrimSpace(speaker+": "+text))
	}
	return strings.Join(lines, "\n")
}
