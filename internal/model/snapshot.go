package model

import (
	"time"

	"github.com/google/uuid"
)

// ScenarioSummary is the scenario view embedded in a snapshot.
type ScenarioSummary struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Difficulty  *string   `json:"difficulty,omitempty"`
	IsCustom    bool      `json:"is_custom"`
}

// Snapshot is the full read model of a conversation.
type Snapshot struct {
	ID           uuid.UUID          `json:"id"`
	Scenario     *ScenarioSummary   `json:"scenario"`
	CustomTitle  *string            `json:"custom_title"`
	CustomPrompt *string            `json:"custom_prompt"`
	Mode         ConversationMode   `json:"mode"`
	Status       ConversationStatus `json:"status"`
	EndedAt      *time.Time         `json:"ended_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Messages     []Message          `json:"messages"`
	Evaluation   *Evaluation        `json:"evaluation"`
}

// UserTurns counts learner messages in the snapshot.
func (s *Snapshot) UserTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// AudioFile is one recorded learner turn, used for archival export.
type AudioFile struct {
	MessageID uuid.UUID `json:"message_id"`
	Path      string    `json:"audio_path"`
	CreatedAt time.Time `json:"created_at"`
}
