package repository

import (
	"context"
	"time"

	"speakup/internal/model"

	"github.com/google/uuid"
)

// UserRepository is the identity boundary. Lookups of unknown ids return apperr.ErrNotFound.
type UserRepository interface {
	FindUser(ctx context.Context, id uuid.UUID) (*model.User, error)

	// EnsureUser creates the user when the id is not known yet
	EnsureUser(ctx context.Context, u *model.User) error
}

// ScenarioRepository stores built-in and learner-authored scenarios
type ScenarioRepository interface {
	// Create inserts a new scenario
	Create(ctx context.Context, s *model.Scenario) error

	// CreateMany inserts scenarios in one transaction (seeding)
	CreateMany(ctx context.Context, scenarios []model.Scenario) error

	// FindByID retrieves a scenario by ID
	FindByID(ctx context.Context, id uuid.UUID) (*model.Scenario, error)

	// ListVisible returns built-in scenarios plus the user's custom ones, oldest first
	ListVisible(ctx context.Context, userID uuid.UUID) ([]model.Scenario, error)

	// Count returns the number of stored scenarios
	Count(ctx context.Context) (int64, error)
}

// ConversationRepository stores practice sessions
type ConversationRepository interface {
	// Create inserts a new conversation
	Create(ctx context.Context, c *model.Conversation) error

	// FindByID retrieves a conversation with its scenario preloaded
	FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error)

	// Save persists status, ended-at and updated-at changes
	Save(ctx context.Context, c *model.Conversation) error

	// Touch bumps updated-at
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListIdle returns ACTIVE conversations not updated since before
	ListIdle(ctx context.Context, before time.Time) ([]model.Conversation, error)
}

// MessageRepository stores append-only turns
type MessageRepository interface {
	// Create appends a message
	Create(ctx context.Context, m *model.Message) error

	// ListByConversation returns messages ordered by created-at ascending
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error)
}

// EvaluationRepository stores at most one evaluation per conversation
type EvaluationRepository interface {
	// FindByConversation returns the evaluation or apperr.ErrNotFound
	FindByConversation(ctx context.Context, conversationID uuid.UUID) (*model.Evaluation, error)

	// Upsert creates the evaluation or updates the existing row in place
	Upsert(ctx context.Context, e *model.Evaluation) error
}

// Store bundles every repository the orchestrator depends on.
type Store struct {
	Users         UserRepository
	Scenarios     ScenarioRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Evaluations   EvaluationRepository
}
