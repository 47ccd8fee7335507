package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"speakup/internal/apperr"
	"speakup/internal/db"
	"speakup/internal/model"

	"github.com/google/uuid"
)

func newTestGormStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewGormStore(conn)
}

func seedConversation(t *testing.T, s *Store) *model.Conversation {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	c := &model.Conversation{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Mode:      model.ModeText,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Conversations.Create(ctx, c); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return c
}

func TestGormMessagesOrderedByCreatedAt(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	c := seedConversation(t, s)

	base := time.Now().UTC().Truncate(time.Microsecond)
	// insert out of order
	for _, offset := range []int{2, 0, 1} {
		m := &model.Message{
			ID:             uuid.New(),
			ConversationID: c.ID,
			Role:           model.RoleUser,
			Content:        string(rune('a' + offset)),
			CreatedAt:      base.Add(time.Duration(offset) * time.Millisecond),
		}
		if err := s.Messages.Create(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := s.Messages.ListByConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("messages not strictly ordered at %d", i)
		}
	}
	if msgs[0].Content != "a" || msgs[2].Content != "c" {
		t.Fatalf("unexpected order: %q %q", msgs[0].Content, msgs[2].Content)
	}
}

func TestGormEvaluationUpsertKeepsSingleRow(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	c := seedConversation(t, s)

	first := &model.Evaluation{ID: uuid.New(), ConversationID: c.ID, GrammarScore: 4, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.Evaluations.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &model.Evaluation{ID: uuid.New(), ConversationID: c.ID, GrammarScore: 8, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.Evaluations.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Evaluations.FindByConversation(ctx, c.ID)
	if err != nil {
		t.Fatalf("find evaluation: %v", err)
	}
	if got.GrammarScore != 8 {
		t.Fatalf("expected updated grammar score 8, got %v", got.GrammarScore)
	}

	var n int64
	gs := s.Evaluations.(*gormEvaluations)
	if err := gs.db.Model(&model.Evaluation{}).Where("conversation_id = ?", c.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one evaluation row, got %d", n)
	}
}

func TestGormNotFoundIsTyped(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()

	if _, err := s.Conversations.FindByID(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for conversation, got %v", err)
	}
	if _, err := s.Evaluations.FindByConversation(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for evaluation, got %v", err)
	}
	if _, err := s.Users.FindUser(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
}

func TestGormEnsureUser(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	id := uuid.New()

	if err := s.Users.EnsureUser(ctx, &model.User{ID: id, Name: "first"}); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	again := &model.User{ID: id, Name: "second"}
	if err := s.Users.EnsureUser(ctx, again); err != nil {
		t.Fatalf("ensure existing user: %v", err)
	}
	if again.Name != "first" {
		t.Fatalf("expected stored name to win, got %q", again.Name)
	}
	if _, err := s.Users.FindUser(ctx, id); err != nil {
		t.Fatalf("find user: %v", err)
	}
}

func TestGormListVisibleScenarios(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()

	seed := []model.Scenario{
		{ID: uuid.New(), Title: "Built-in", Prompt: "p", Language: "en", CreatedAt: now},
		{ID: uuid.New(), Title: "Mine", Prompt: "p", Language: "en", IsCustom: true, CreatedBy: &owner, CreatedAt: now.Add(time.Second)},
		{ID: uuid.New(), Title: "Theirs", Prompt: "p", Language: "en", IsCustom: true, CreatedBy: &other, CreatedAt: now.Add(2 * time.Second)},
	}
	if err := s.Scenarios.CreateMany(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.Scenarios.ListVisible(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Built-in" || got[1].Title != "Mine" {
		t.Fatalf("unexpected visible scenarios: %+v", got)
	}
}

func TestGormSaveAndListIdle(t *testing.T) {
	s := newTestGormStore(t)
	ctx := context.Background()
	c := seedConversation(t, s)

	idle, err := s.Conversations.ListIdle(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 || idle[0].ID != c.ID {
		t.Fatalf("expected the conversation to be idle, got %+v", idle)
	}

	ended := time.Now().UTC()
	c.Status = model.StatusCompleted
	c.EndedAt = &ended
	c.UpdatedAt = ended
	if err := s.Conversations.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	idle, err = s.Conversations.ListIdle(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 0 {
		t.Fatalf("completed conversations must not be idle, got %d", len(idle))
	}
}
