package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"speakup/internal/apperr"
	"speakup/internal/model"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs the no-database mode
// and the service tests. Values are copied in and out to avoid sharing.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]model.User
	scenarios     map[uuid.UUID]model.Scenario
	conversations map[uuid.UUID]model.Conversation
	messages      map[uuid.UUID][]model.Message
	evaluations   map[uuid.UUID]model.Evaluation
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]model.User),
		scenarios:     make(map[uuid.UUID]model.Scenario),
		conversations: make(map[uuid.UUID]model.Conversation),
		messages:      make(map[uuid.UUID][]model.Message),
		evaluations:   make(map[uuid.UUID]model.Evaluation),
	}
}

// Store exposes the memory store through the repository interfaces
func (m *MemoryStore) Store() *Store {
	return &Store{
		Users:         memUsers{m},
		Scenarios:     memScenarios{m},
		Conversations: memConversations{m},
		Messages:      memMessages{m},
		Evaluations:   memEvaluations{m},
	}
}

// PutUser registers a user
func (m *MemoryStore) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// MessageCount returns how many messages a conversation holds
func (m *MemoryStore) MessageCount(conversationID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[conversationID])
}

// EvaluationCount returns the number of stored evaluation rows
func (m *MemoryStore) EvaluationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.evaluations)
}

type memUsers struct{ m *MemoryStore }

func (r memUsers) FindUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", apperr.ErrNotFound)
	}
	return &u, nil
}

func (r memUsers) EnsureUser(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.users[u.ID]; ok {
		*u = existing
		return nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.m.users[u.ID] = *u
	return nil
}

type memScenarios struct{ m *MemoryStore }

func (r memScenarios) Create(_ context.Context, s *model.Scenario) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.scenarios[s.ID] = *s
	return nil
}

func (r memScenarios) CreateMany(ctx context.Context, scenarios []model.Scenario) error {
	for i := range scenarios {
		if err := r.Create(ctx, &scenarios[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r memScenarios) FindByID(_ context.Context, id uuid.UUID) (*model.Scenario, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario: %w", apperr.ErrNotFound)
	}
	return &s, nil
}

func (r memScenarios) ListVisible(_ context.Context, userID uuid.UUID) ([]model.Scenario, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]model.Scenario, 0, len(r.m.scenarios))
	for _, s := range r.m.scenarios {
		if !s.IsCustom || (s.CreatedBy != nil && *s.CreatedBy == userID) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memScenarios) Count(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.scenarios)), nil
}

type memConversations struct{ m *MemoryStore }

func (r memConversations) Create(_ context.Context, c *model.Conversation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *c
	stored.Scenario = nil
	stored.Messages = nil
	stored.Evaluation = nil
	r.m.conversations[c.ID] = stored
	return nil
}

func (r memConversations) FindByID(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation: %w", apperr.ErrNotFound)
	}
	if c.ScenarioID != nil {
		if s, ok := r.m.scenarios[*c.ScenarioID]; ok {
			c.Scenario = &s
		}
	}
	return &c, nil
}

func (r memConversations) Save(_ context.Context, c *model.Conversation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.conversations[c.ID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", c.ID, apperr.ErrNotFound)
	}
	stored.Status = c.Status
	stored.EndedAt = c.EndedAt
	stored.UpdatedAt = c.UpdatedAt
	r.m.conversations[c.ID] = stored
	return nil
}

func (r memConversations) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if stored, ok := r.m.conversations[id]; ok {
		stored.UpdatedAt = at
		r.m.conversations[id] = stored
	}
	return nil
}

func (r memConversations) ListIdle(_ context.Context, before time.Time) ([]model.Conversation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Conversation
	for _, c := range r.m.conversations {
		if c.Status == model.StatusActive && c.UpdatedAt.Before(before) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

type memMessages struct{ m *MemoryStore }

func (r memMessages) Create(_ context.Context, msg *model.Message) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.conversations[msg.ConversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, apperr.ErrNotFound)
	}
	r.m.messages[msg.ConversationID] = append(r.m.messages[msg.ConversationID], *msg)
	return nil
}

func (r memMessages) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := append([]model.Message(nil), r.m.messages[conversationID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memEvaluations struct{ m *MemoryStore }

func (r memEvaluations) FindByConversation(_ context.Context, conversationID uuid.UUID) (*model.Evaluation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.evaluations[conversationID]
	if !ok {
		return nil, fmt.Errorf("evaluation: %w", apperr.ErrNotFound)
	}
	return &e, nil
}

func (r memEvaluations) Upsert(_ context.Context, e *model.Evaluation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.evaluations[e.ConversationID]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	}
	r.m.evaluations[e.ConversationID] = *e
	return nil
}
