package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"speakup/internal/apperr"
	"speakup/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormStore creates repositories backed by a GORM connection
func NewGormStore(db *gorm.DB) *Store {
	r := &gormRepository{db: db}
	return &Store{
		Users:         &gormUsers{r},
		Scenarios:     &gormScenarios{r},
		Conversations: &gormConversations{r},
		Messages:      &gormMessages{r},
		Evaluations:   &gormEvaluations{r},
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

type gormUsers struct{ *gormRepository }

// FindUser retrieves a user by ID
func (r *gormUsers) FindUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// EnsureUser inserts the user unless a row with the same ID exists
func (r *gormUsers) EnsureUser(ctx context.Context, u *model.User) error {
	if err := r.db.WithContext(ctx).Where("id = ?", u.ID).FirstOrCreate(u).Error; err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

type gormScenarios struct{ *gormRepository }

// Create creates a new scenario record
func (r *gormScenarios) Create(ctx context.Context, s *model.Scenario) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

// CreateMany inserts all scenarios or none
func (r *gormScenarios) CreateMany(ctx context.Context, scenarios []model.Scenario) error {
	if len(scenarios) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&scenarios).Error
	})
	if err != nil {
		return fmt.Errorf("failed to seed scenarios: %w", err)
	}
	return nil
}

// FindByID retrieves a scenario by ID
func (r *gormScenarios) FindByID(ctx context.Context, id uuid.UUID) (*model.Scenario, error) {
	var s model.Scenario
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "scenario")
	}
	return &s, nil
}

// ListVisible retrieves built-in scenarios and the user's own
func (r *gormScenarios) ListVisible(ctx context.Context, userID uuid.UUID) ([]model.Scenario, error) {
	var out []model.Scenario
	err := r.db.WithContext(ctx).
		Where("is_custom = ?", false).
		Or("created_by = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return out, nil
}

// Count returns the number of scenarios
func (r *gormScenarios) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Scenario{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return n, nil
}

type gormConversations struct{ *gormRepository }

// Create creates a new conversation record
func (r *gormConversations) Create(ctx context.Context, c *model.Conversation) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// FindByID retrieves a conversation with its scenario
func (r *gormConversations) FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.db.WithContext(ctx).Preload("Scenario").First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

// Save updates the mutable conversation columns
func (r *gormConversations) Save(ctx context.Context, c *model.Conversation) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"status":     c.Status,
			"ended_at":   c.EndedAt,
			"updated_at": c.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", c.ID, apperr.ErrNotFound)
	}
	return nil
}

// Touch bumps updated_at
func (r *gormConversations) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// ListIdle retrieves active conversations untouched since before
func (r *gormConversations) ListIdle(ctx context.Context, before time.Time) ([]model.Conversation, error) {
	var out []model.Conversation
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.StatusActive, before).
		Order("updated_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query idle conversations: %w", err)
	}
	return out, nil
}

type gormMessages struct{ *gormRepository }

// Create appends a message
func (r *gormMessages) Create(ctx context.Context, m *model.Message) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByConversation retrieves messages oldest first
func (r *gormMessages) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	var out []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return out, nil
}

type gormEvaluations struct{ *gormRepository }

// FindByConversation retrieves the conversation's evaluation
func (r *gormEvaluations) FindByConversation(ctx context.Context, conversationID uuid.UUID) (*model.Evaluation, error) {
	var e model.Evaluation
	if err := r.db.WithContext(ctx).First(&e, "conversation_id = ?", conversationID).Error; err != nil {
		return nil, notFound(err, "evaluation")
	}
	return &e, nil
}

// Upsert inserts or updates the row keyed by conversation_id
func (r *gormEvaluations) Upsert(ctx context.Context, e *model.Evaluation) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pronunciation_score", "prosody_score", "grammar_score", "vocabulary_score",
			"summary", "raw_details", "updated_at",
		}),
	}).Create(e).Error
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation: %w", err)
	}
	// on conflict the row keeps its original id and created_at
	var stored model.Evaluation
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", e.ConversationID).First(&stored).Error; err != nil {
		return notFound(err, "evaluation")
	}
	*e = stored
	return nil
}
