package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationMode is how the learner talks to the partner.
type ConversationMode string

const (
	ModeText  ConversationMode = "TEXT"
	ModeVoice ConversationMode = "VOICE"
)

// Valid reports whether m is a known mode.
func (m ConversationMode) Valid() bool {
	return m == ModeText || m == ModeVoice
}

// ConversationStatus only ever moves ACTIVE -> COMPLETED.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "ACTIVE"
	StatusCompleted ConversationStatus = "COMPLETED"
)

// MessageRole identifies the author of a turn.
type MessageRole string

const (
	RoleUser MessageRole = "USER"
	RoleAI   MessageRole = "AI"
)

// User is the minimal identity record the orchestrator needs.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:120" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Scenario is a reusable role-play premise.
type Scenario struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"size:120;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Prompt      string     `gorm:"type:text;not null" json:"prompt"`
	Language    string     `gorm:"size:16;default:en" json:"language"`
	Difficulty  *string    `gorm:"size:32" json:"difficulty,omitempty"`
	IsCustom    bool       `gorm:"default:false" json:"is_custom"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;index" json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Conversation is one practice session.
type Conversation struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	ScenarioID   *uuid.UUID         `gorm:"type:uuid;index" json:"scenario_id,omitempty"`
	Scenario     *Scenario          `gorm:"foreignKey:ScenarioID" json:"-"`
	CustomTitle  *string            `gorm:"size:120" json:"custom_title,omitempty"`
	CustomPrompt *string            `gorm:"type:text" json:"custom_prompt,omitempty"`
	Mode         ConversationMode   `gorm:"size:16;not null;default:TEXT" json:"mode"`
	Status       ConversationStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `gorm:"index" json:"updated_at"`

	Messages   []Message   `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Evaluation *Evaluation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// Title returns the scenario title, or the custom title for custom sessions.
func (c *Conversation) Title() string {
	if c.Scenario != nil {
		return c.Scenario.Title
	}
	if c.CustomTitle != nil {
		return *c.CustomTitle
	}
	return ""
}

// Message is one append-only turn. Only user voice turns carry audio metadata.
type Message struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID   `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	Role            MessageRole `gorm:"size:8;not null" json:"role"`
	Content         string      `gorm:"type:text;not null" json:"content"`
	Transcript      *string     `gorm:"type:text" json:"transcript,omitempty"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	AudioPath       *string     `gorm:"size:255" json:"audio_path,omitempty"`
	CreatedAt       time.Time   `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`
}

// Evaluation is the single scoring snapshot of a conversation.
type Evaluation struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"conversation_id"`
	PronunciationScore float64        `gorm:"default:0" json:"pronunciation_score"`
	ProsodyScore       float64        `gorm:"default:0" json:"prosody_score"`
	GrammarScore       float64        `gorm:"default:0" json:"grammar_score"`
	VocabularyScore    float64        `gorm:"default:0" json:"vocabulary_score"`
	Summary            *string        `gorm:"type:text" json:"summary,omitempty"`
	RawDetails         datatypes.JSON `json:"raw_details,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
