// Package conversation runs scenario-driven practice sessions: it owns the
// conversation state machine, the turn protocol and the fallback policy.
package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"speakup/internal/ai"
	"speakup/internal/apperr"
	"speakup/internal/model"
	"speakup/internal/realtime"
	"speakup/internal/repository"
	"speakup/internal/scenario"
	"speakup/internal/storage"
	"speakup/internal/stt"
	"speakup/internal/tts"
)

const maxSpeechChars = 4000

// Evaluator scores a conversation and stores the result.
type Evaluator interface {
	Evaluate(ctx context.Context, conversationID uuid.UUID) (*model.Evaluation, error)
}

// Deps are the collaborators of a Service. Synthesizer may be nil.
type Deps struct {
	Store       *repository.Store
	Catalog     *scenario.Catalog
	Templates   *ai.Templates
	Generator   ai.Generator
	Transcriber stt.Provider
	Synthesizer tts.Synthesizer
	Audio       *storage.AudioStore
	Evaluator   Evaluator
	Notifier    realtime.Notifier
}

// Service is the conversation orchestrator.
type Service struct {
	store       *repository.Store
	catalog     *scenario.Catalog
	templates   *ai.Templates
	gen         ai.Generator
	transcriber stt.Provider
	synthesizer tts.Synthesizer
	audio       *storage.AudioStore
	evaluator   Evaluator
	notifier    realtime.Notifier
	locks       *keyedMutex
	now         func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		store:       d.Store,
		catalog:     d.Catalog,
		templates:   d.Templates,
		gen:         d.Generator,
		transcriber: d.Transcriber,
		synthesizer: d.Synthesizer,
		audio:       d.Audio,
		evaluator:   d.Evaluator,
		notifier:    d.Notifier,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// StartOptions selects the dialogue brief of a new conversation. Either
// ScenarioID or CustomPrompt must be set.
type StartOptions struct {
	ScenarioID   *uuid.UUID
	CustomTitle  string
	CustomPrompt string
	Mode         model.ConversationMode
	// Focus is an optional learner note appended to the brief.
	Focus string
	// FocusLabel names the focus in the fallback opening line.
	FocusLabel string
}

// StartResult is the snapshot of a new conversation and its opening line.
type StartResult struct {
	Conversation   *model.Snapshot `json:"conversation"`
	OpeningMessage *model.Message  `json:"opening_message"`
}

// TurnResult is returned by the text and voice turn operations.
type TurnResult struct {
	UserMessage   *model.Message    `json:"user_message"`
	AIMessage     *model.Message    `json:"ai_message"`
	Evaluation    *model.Evaluation `json:"evaluation"`
	Transcription *stt.Result       `json:"transcription,omitempty"`
}

// Speech is synthesized audio ready for a JSON response.
type Speech struct {
	AudioBase64 string `json:"audioBase64"`
	MimeType    string `json:"mimeType"`
	Voice       string `json:"voice"`
}

// Start creates an ACTIVE conversation and persists its opening AI message.
// Generation failures fall back to a canned opening.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, opts StartOptions) (*StartResult, error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.store.Users.FindUser(ctx, userID); err != nil {
		return nil, err
	}

	mode := opts.Mode
	if mode == "" {
		mode = model.ModeText
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", apperr.ErrInvalidArgument, mode)
	}

	var sc *model.Scenario
	if opts.ScenarioID != nil {
		found, err := s.store.Scenarios.FindByID(ctx, *opts.ScenarioID)
		if err != nil {
			return nil, err
		}
		if found.IsCustom && (found.CreatedBy == nil || *found.CreatedBy != userID) {
			return nil, fmt.Errorf("scenario %s: %w", found.ID, apperr.ErrNotFound)
		}
		sc = found
	}

	basePrompt := strings.TrimSpace(opts.CustomPrompt)
	if sc != nil {
		basePrompt = sc.Prompt
	}
	if basePrompt == "" {
		return nil, fmt.Errorf("%w: a scenario or a custom prompt is required", apperr.ErrInvalidArgument)
	}

	note := strings.TrimSpace(opts.Focus)
	appliedPrompt := basePrompt
	if note != "" {
		appliedPrompt = basePrompt + "\n\nLearner focus or additional context:\n" + note
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	conv := &model.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Mode:      mode,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sc != nil {
		conv.ScenarioID = &sc.ID
		conv.Scenario = sc
		if note != "" {
			conv.CustomPrompt = &note
		}
	} else {
		title := strings.TrimSpace(opts.CustomTitle)
		if title == "" {
			title = "Custom scenario"
		}
		conv.CustomTitle = &title
		conv.CustomPrompt = &appliedPrompt
	}
	if err := s.store.Conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	label := strings.TrimSpace(opts.FocusLabel)
	if label == "" {
		label = conv.Title()
	}
	key := s.catalog.ResolveKey(conv.Title(), appliedPrompt)
	text := s.openingLine(ctx, key, appliedPrompt, note, conv.Title(), label)

	opening := &model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.RoleAI,
		Content:        text,
		CreatedAt:      nextTimestamp(s.now(), now),
	}
	if err := s.store.Messages.Create(ctx, opening); err != nil {
		return nil, err
	}
	s.notifier.Emit(conv.ID, realtime.EventAIMessage, opening)
	log.Printf("[Orchestrator] Started conversation %s (scenario key=%s, mode=%s)", conv.ID, key, mode)

	snap, err := s.GetSnapshot(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	return &StartResult{Conversation: snap, OpeningMessage: opening}, nil
}

// Complete marks the conversation COMPLETED and runs a best-effort final
// evaluation. Completing an already completed conversation only re-evaluates.
func (s *Service) Complete(ctx context.Context, conversationID, userID uuid.UUID) (*model.Evaluation, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conv, err := s.ownedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, conv)
}

func (s *Service) complete(ctx context.Context, conv *model.Conversation) (*model.Evaluation, error) {
	if conv.Status != model.StatusCompleted {
		now := s.now().UTC()
		conv.Status = model.StatusCompleted
		conv.EndedAt = &now
		conv.UpdatedAt = now
		if err := s.store.Conversations.Save(ctx, conv); err != nil {
			return nil, err
		}
		log.Printf("[Orchestrator] Conversation %s completed", conv.ID)
	}
	return s.evaluate(ctx, conv.ID), nil
}

// CompleteIdle completes every ACTIVE conversation not updated since before.
// It returns how many conversations were completed.
func (s *Service) CompleteIdle(ctx context.Context, before time.Time) (int, error) {
	idle, err := s.store.Conversations.ListIdle(ctx, before)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, c := range idle {
		unlock := s.locks.Lock(c.ID)
		// re-read under the lock; a turn may have landed meanwhile
		conv, err := s.store.Conversations.FindByID(ctx, c.ID)
		if err == nil && conv.Status == model.StatusActive && conv.UpdatedAt.Before(before) {
			_, err = s.complete(ctx, conv)
			if err == nil {
				done++
			}
		}
		unlock()
		if err != nil {
			log.Printf("[Orchestrator] Idle completion failed for %s: %v", c.ID, err)
		}
	}
	return done, nil
}

// GetSnapshot returns the conversation with its scenario, ordered messages and
// current evaluation.
func (s *Service) GetSnapshot(ctx context.Context, conversationID, userID uuid.UUID) (*model.Snapshot, error) {
	conv, err := s.ownedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	ev, err := s.findEvaluation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		ID:           conv.ID,
		CustomTitle:  conv.CustomTitle,
		CustomPrompt: conv.CustomPrompt,
		Mode:         conv.Mode,
		Status:       conv.Status,
		EndedAt:      conv.EndedAt,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Messages:     msgs,
		Evaluation:   ev,
	}
	if conv.Scenario != nil {
		snap.Scenario = &model.ScenarioSummary{
			ID:          conv.Scenario.ID,
			Title:       conv.Scenario.Title,
			Description: conv.Scenario.Description,
			Language:    conv.Scenario.Language,
			Difficulty:  conv.Scenario.Difficulty,
			IsCustom:    conv.Scenario.IsCustom,
		}
	}
	return snap, nil
}

// GetEvaluation returns the current evaluation, or nil when none exists yet.
func (s *Service) GetEvaluation(ctx context.Context, conversationID, userID uuid.UUID) (*model.Evaluation, error) {
	if _, err := s.ownedConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.findEvaluation(ctx, conversationID)
}

// ListAudioFiles returns the recorded learner turns of a conversation in order.
func (s *Service) ListAudioFiles(ctx context.Context, conversationID, userID uuid.UUID) ([]model.AudioFile, error) {
	if _, err := s.ownedConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	var files []model.AudioFile
	for _, m := range msgs {
		if m.AudioPath != nil && *m.AudioPath != "" {
			files = append(files, model.AudioFile{MessageID: m.ID, Path: *m.AudioPath, CreatedAt: m.CreatedAt})
		}
	}
	return files, nil
}

// Synthesize reads text aloud for a learner. Text longer than 4000
// characters is truncated.
func (s *Service) Synthesize(ctx context.Context, userID uuid.UUID, text, voice string) (*Speech, error) {
	if _, err := s.store.Users.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", apperr.ErrInvalidArgument)
	}
	if s.synthesizer == nil {
		return nil, fmt.Errorf("%w: speech synthesis is not configured", apperr.ErrProviderUnavailable)
	}
	if r := []rune(text); len(r) > maxSpeechChars {
		text = string(r[:maxSpeechChars])
	}
	res, err := s.synthesizer.Synthesize(ctx, text, strings.TrimSpace(voice))
	if err != nil {
		return nil, err
	}
	return &Speech{
		AudioBase64: base64.StdEncoding.EncodeToString(res.Audio),
		MimeType:    res.MimeType,
		Voice:       res.Voice,
	}, nil
}

// ResolveAudio maps a stored audio path to its location on disk.
func (s *Service) ResolveAudio(rel string) (string, error) {
	return s.audio.Resolve(rel)
}

// ownedConversation loads a conversation owned by userID. A conversation of
// another user is reported as not found.
func (s *Service) ownedConversation(ctx context.Context, conversationID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.store.Conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w: %w", conversationID, apperr.ErrNotFound, apperr.ErrForbidden)
	}
	return conv, nil
}

func (s *Service) findEvaluation(ctx context.Context, conversationID uuid.UUID) (*model.Evaluation, error) {
	ev, err := s.store.Evaluations.FindByConversation(ctx, conversationID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return ev, err
}

// evaluate runs the evaluator and swallows its failures.
func (s *Service) evaluate(ctx context.Context, conversationID uuid.UUID) *model.Evaluation {
	if s.evaluator == nil {
		return nil
	}
	ev, err := s.evaluator.Evaluate(ctx, conversationID)
	if err != nil {
		log.Printf("[Orchestrator] Evaluation failed for %s: %v", conversationID, err)
		return nil
	}
	s.notifier.Emit(conversationID, realtime.EventEvaluationUpdate, ev)
	return ev
}

// nextTimestamp returns now truncated to microseconds, moved past last when needed
// so message creation times stay strictly increasing.
func nextTimestamp(now, last time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	if !t.After(last) {
		t = last.Add(time.Microsecond)
	}
	return t
}
