package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"speakup/internal/ai"
	"speakup/internal/apperr"
	"speakup/internal/model"
	"speakup/internal/realtime"
	"speakup/internal/scenario"
)

const (
	defaultOpeningLine  = "Hello! I'm ready to kick off our role-play together. Could you start by introducing yourself so we can dive in?"
	blankFollowUpLine   = "Could you tell me a bit more so we can keep the conversation moving?"
	noBriefing          = "(No additional briefing provided.)"
	noHistory           = "(No conversation history yet.)"
	noExtraFocus        = "(no additional context)"
	lastReplyPreviewLen = 160
)

// AudioUpload is a learner recording as received from the client.
type AudioUpload struct {
	Filename string
	Body     io.Reader
}

// TranscriptEvent is pushed for live captioning after a voice turn.
type TranscriptEvent struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	Text           string    `json:"text"`
	Duration       *float64  `json:"duration"`
}

// AddTextMessage records a typed learner turn and the partner's reply.
// The turn runs to completion even if the caller goes away.
func (s *Service) AddTextMessage(ctx context.Context, conversationID, userID uuid.UUID, text string) (*TurnResult, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conv, err := s.ownedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message is empty", apperr.ErrInvalidArgument)
	}

	history, err := s.store.Messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	userMsg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        trimmed,
		Transcript:     &trimmed,
		CreatedAt:      s.stamp(history),
	}
	if err := s.store.Messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	s.notifier.Emit(conv.ID, realtime.EventUserMessage, userMsg)

	return s.finishTurn(ctx, conv, append(history, *userMsg), userMsg)
}

// AddVoiceMessage stores a recording, transcribes it and runs the turn
// protocol on the transcript. Failed transcriptions persist no message.
func (s *Service) AddVoiceMessage(ctx context.Context, conversationID, userID uuid.UUID, upload AudioUpload) (*TurnResult, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conv, err := s.ownedConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: no audio uploaded", apperr.ErrInvalidAudio)
	}

	rel, _, err := s.audio.Save(conv.ID.String(), upload.Filename, upload.Body)
	if err != nil {
		return nil, err
	}
	if _, err := s.audio.Size(rel); err != nil {
		s.discardAudio(rel)
		return nil, err
	}
	abs, err := s.audio.Resolve(rel)
	if err != nil {
		return nil, err
	}

	res, err := s.transcriber.Transcribe(ctx, abs)
	if err != nil {
		log.Printf("[Orchestrator] Voice transcription failed for %s: %v", conv.ID, err)
		s.discardAudio(rel)
		return nil, fmt.Errorf("%w: %w", apperr.ErrTranscriptionFailed, err)
	}
	transcript := strings.TrimSpace(res.Text)
	if transcript == "" {
		s.discardAudio(rel)
		return nil, fmt.Errorf("%w: %w", apperr.ErrTranscriptionFailed, apperr.ErrEmptyTranscript)
	}

	history, err := s.store.Messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	userMsg := &model.Message{
		ID:              uuid.New(),
		ConversationID:  conv.ID,
		Role:            model.RoleUser,
		Content:         transcript,
		Transcript:      &transcript,
		DurationSeconds: res.DurationSeconds,
		AudioPath:       &rel,
		CreatedAt:       s.stamp(history),
	}
	if err := s.store.Messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	s.notifier.Emit(conv.ID, realtime.EventUserMessage, userMsg)
	s.notifier.Emit(conv.ID, realtime.EventTranscript, TranscriptEvent{
		ConversationID: conv.ID,
		MessageID:      userMsg.ID,
		Text:           transcript,
		Duration:       res.DurationSeconds,
	})

	result, err := s.finishTurn(ctx, conv, append(history, *userMsg), userMsg)
	if err != nil {
		return nil, err
	}
	result.Transcription = res
	return result, nil
}

// finishTurn produces and stores the AI reply, then runs a best-effort evaluation.
func (s *Service) finishTurn(ctx context.Context, conv *model.Conversation, history []model.Message, userMsg *model.Message) (*TurnResult, error) {
	reply := s.followUp(ctx, conv, history, userMsg.Content)
	aiMsg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           model.RoleAI,
		Content:        reply,
		CreatedAt:      s.stamp(history),
	}
	if err := s.store.Messages.Create(ctx, aiMsg); err != nil {
		return nil, err
	}
	s.notifier.Emit(conv.ID, realtime.EventAIMessage, aiMsg)

	if err := s.store.Conversations.Touch(ctx, conv.ID, aiMsg.CreatedAt); err != nil {
		return nil, err
	}

	return &TurnResult{
		UserMessage: userMsg,
		AIMessage:   aiMsg,
		Evaluation:  s.evaluate(ctx, conv.ID),
	}, nil
}

// FollowUpPlan is everything the turn protocol derives before calling the generator.
type FollowUpPlan struct {
	Key          scenario.Key
	Guidance     scenario.Guidance
	UserTurns    int
	WantsToClose bool
	ShouldClose  bool
	Directive    string
	Prompt       string
}

// PlanFollowUp builds the follow-up prompt for history, whose last element is
// the latest learner turn.
func (s *Service) PlanFollowUp(conv *model.Conversation, history []model.Message, latest string) FollowUpPlan {
	var briefParts []string
	if conv.Scenario != nil && conv.Scenario.Prompt != "" {
		briefParts = append(briefParts, conv.Scenario.Prompt)
	}
	if conv.CustomPrompt != nil && *conv.CustomPrompt != "" {
		briefParts = append(briefParts, *conv.CustomPrompt)
	}
	brief := noBriefing
	if len(briefParts) > 0 {
		brief = strings.Join(briefParts, "\n\n")
	}

	historyLines := ai.HistoryLines(history)
	if historyLines == "" {
		historyLines = noHistory
	}

	p := FollowUpPlan{Key: s.catalog.ResolveKey(conv.Title(), brief)}
	p.Guidance = s.catalog.GuidanceFor(p.Key)
	for _, m := range history {
		if m.Role == model.RoleUser {
			p.UserTurns++
		}
	}
	p.WantsToClose = LearnerWantsToClose(latest)
	p.ShouldClose = DetectClosure(latest, p.UserTurns, p.Guidance.MaxUserTurns)
	p.Directive = p.Guidance.Progression
	if p.ShouldClose {
		p.Directive = p.Guidance.Closing
	}

	avoid := "Keep the wording fresh and avoid repeating yourself."
	if snippet := lastAISnippet(history); snippet != "" {
		avoid = `Keep the wording fresh and do not echo your previous reply where you said: "` + snippet + `".`
	}

	p.Prompt = ai.Render(s.templates.FollowUp.Template, map[string]string{
		"persona":                    p.Guidance.Persona,
		"tone":                       p.Guidance.Tone,
		"focus":                      p.Guidance.Focus,
		"progression":                p.Guidance.Progression,
		"scenarioBrief":              brief,
		"historyLines":               historyLines,
		"latestUserText":             latest,
		"userTurnCount":              strconv.Itoa(p.UserTurns),
		"learnerWantsToClose":        yesNo(p.WantsToClose),
		"closureDirective":           p.Directive,
		"avoidRepetitionInstruction": avoid,
	})
	return p
}

func (s *Service) followUp(ctx context.Context, conv *model.Conversation, history []model.Message, latest string) string {
	plan := s.PlanFollowUp(conv, history, latest)
	text, err := s.gen.Generate(ctx, ai.Request{
		Prompt:          plan.Prompt,
		Temperature:     0.68,
		TopP:            0.85,
		MaxOutputTokens: 220,
	})
	if err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	log.Printf("[Orchestrator] Follow-up generation failed for %s, using fallback: %v", conv.ID, err)
	return s.FallbackFollowUp(plan.Key, len(history), latest)
}

// FallbackFollowUp picks a canned follow-up by messageCount modulo the pool size.
func (s *Service) FallbackFollowUp(key scenario.Key, messageCount int, latest string) string {
	latest = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(latest))
	if latest == "" {
		return blankFollowUpLine
	}
	pool := s.catalog.FallbacksFor(key).FollowUps
	if len(pool) == 0 {
		return blankFollowUpLine
	}
	return pool[messageCount%len(pool)]
}

func (s *Service) openingLine(ctx context.Context, key scenario.Key, scenarioPrompt, note, title, label string) string {
	g := s.catalog.GuidanceFor(key)
	extra := note
	if extra == "" {
		extra = noExtraFocus
	}
	prompt := ai.Render(s.templates.Opening.Template, map[string]string{
		"persona":          g.Persona,
		"tone":             g.Tone,
		"scenarioPrompt":   scenarioPrompt,
		"extraFocus":       extra,
		"openingObjective": g.Opening,
	})

	text, err := s.gen.Generate(ctx, ai.Request{Prompt: prompt, Temperature: 0.7, MaxOutputTokens: 180})
	if err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	log.Printf("[Orchestrator] Opening generation failed, using fallback: %v", err)
	return s.FallbackOpening(key, title, label)
}

// FallbackOpening renders the scenario's canned opening, falling back to the
// default scenario's and then to a fixed greeting.
func (s *Service) FallbackOpening(key scenario.Key, title, label string) string {
	tpl := s.catalog.FallbacksFor(key).Opening
	if strings.TrimSpace(tpl) == "" {
		tpl = s.catalog.DefaultFallbacks().Opening
	}
	if strings.TrimSpace(tpl) == "" {
		tpl = defaultOpeningLine
	}
	sentence := ""
	if label != "" {
		sentence = " We're focusing on " + label + "."
	}
	return ai.Render(tpl, map[string]string{
		"scenarioTitle":   title,
		"contextLabel":    label,
		"contextSentence": sentence,
	})
}

func (s *Service) stamp(history []model.Message) time.Time {
	var last time.Time
	if n := len(history); n > 0 {
		last = history[n-1].CreatedAt
	}
	return nextTimestamp(s.now(), last)
}

func (s *Service) discardAudio(rel string) {
	if err := s.audio.Remove(rel); err != nil {
		log.Printf("[Orchestrator] Failed to remove rejected audio %s: %v", rel, err)
	}
}

func lastAISnippet(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAI {
			return truncateRunes(history[i].Content, lastReplyPreviewLen)
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
