// Package evaluation scores a conversation transcript with the text generator.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"speakup/internal/ai"
	"speakup/internal/apperr"
	"speakup/internal/model"
	"speakup/internal/repository"
)

const (
	MinScore = 0.0
	MaxScore = 10.0
)

const promptHeader = `You are an English pronunciation and conversation tutor. Evaluate the learner's performance across the following dimensions: Pronunciation, Prosody (intonation & fluency), Grammar, Vocabulary.
Return a JSON object containing numeric scores from 0 to 10 for each dimension using whole or half steps, a short summary (2-3 sentences) and an array of actionable suggestions. Use camelCase field names: pronunciationScore, prosodyScore, grammarScore, vocabularyScore, summary, suggestions.

Conversation transcript:
`

// Report is the structured score report requested from the generator.
type Report struct {
	PronunciationScore *float64 `json:"pronunciationScore"`
	ProsodyScore       *float64 `json:"prosodyScore"`
	GrammarScore       *float64 `json:"grammarScore"`
	VocabularyScore    *float64 `json:"vocabularyScore"`
	Summary            string   `json:"summary"`
	Suggestions        []string `json:"suggestions,omitempty"`
}

// Engine builds the scoring prompt, parses the report and upserts the single
// evaluation row of a conversation.
type Engine struct {
	gen         ai.Generator
	messages    repository.MessageRepository
	evaluations repository.EvaluationRepository
	now         func() time.Time
}

func NewEngine(gen ai.Generator, messages repository.MessageRepository, evaluations repository.EvaluationRepository) *Engine {
	return &Engine{gen: gen, messages: messages, evaluations: evaluations, now: time.Now}
}

// Evaluate scores the complete history of conversationID. Any failure leaves
// the stored evaluation untouched.
func (e *Engine) Evaluate(ctx context.Context, conversationID uuid.UUID) (*model.Evaluation, error) {
	msgs, err := e.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	learnerTurns := 0
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			learnerTurns++
		}
	}
	if learnerTurns == 0 {
		return nil, fmt.Errorf("%w: no learner turns to evaluate", apperr.ErrInvalidArgument)
	}

	raw, err := e.gen.Generate(ctx, ai.Request{
		Prompt:          BuildPrompt(msgs),
		Temperature:     0.3,
		MaxOutputTokens: 512,
		JSON:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation generation failed: %w", err)
	}

	report, err := ParseReport(raw)
	if err != nil {
		log.Printf("[Evaluation] Failed to parse report for %s: %v. Raw: %.300s", conversationID, err, raw)
		return nil, err
	}
	details, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation details: %w", err)
	}

	now := e.now().UTC()
	ev := &model.Evaluation{
		ID:                 uuid.New(),
		ConversationID:     conversationID,
		PronunciationScore: clamp(report.PronunciationScore),
		ProsodyScore:       clamp(report.ProsodyScore),
		GrammarScore:       clamp(report.GrammarScore),
		VocabularyScore:    clamp(report.VocabularyScore),
		RawDetails:         datatypes.JSON(details),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if s := strings.TrimSpace(report.Summary); s != "" {
		ev.Summary = &s
	}
	if err := e.evaluations.Upsert(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}
	log.Printf("[Evaluation] Scored %s: pronunciation=%.1f prosody=%.1f grammar=%.1f vocabulary=%.1f",
		conversationID, ev.PronunciationScore, ev.ProsodyScore, ev.GrammarScore, ev.VocabularyScore)
	return ev, nil
}

// BuildPrompt renders the scoring prompt for a full transcript.
func BuildPrompt(msgs []model.Message) string {
	return promptHeader + ai.HistoryLines(msgs)
}

// ParseReport decodes a generator response strictly as a JSON object.
// Markdown code fences around the object are tolerated.
func ParseReport(raw string) (*Report, error) {
	payload := strings.TrimSpace(ai.ExtractJSON(raw))
	if !strings.HasPrefix(payload, "{") {
		return nil, fmt.Errorf("failed to parse evaluation JSON: expected an object, got %.40q", payload)
	}
	var r Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation JSON: %w", err)
	}
	if r.PronunciationScore == nil && r.ProsodyScore == nil && r.GrammarScore == nil && r.VocabularyScore == nil {
		return nil, errors.New("evaluation JSON has no scores")
	}
	return &r, nil
}

// clamp maps a missing or non-finite score to 0 and bounds the rest to [0, 10].
func clamp(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, *v))
}
