package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"speakup/internal/apperr"
	"speakup/internal/model"
	"speakup/internal/realtime"
	"speakup/internal/repository"
)

func TestStartWithScenario(t *testing.T) {
	h := newHarness(t)
	h.gen.reply = "  Welcome! Please introduce yourself.  "
	sc := h.scenario(t, "Job Interview", "You are interviewing for a product role.")

	res := h.start(t, StartOptions{ScenarioID: &sc.ID})

	if res.Conversation.Status != model.StatusActive {
		t.Errorf("Status = %s, want ACTIVE", res.Conversation.Status)
	}
	if res.Conversation.Mode != model.ModeText {
		t.Errorf("Mode = %s, want TEXT", res.Conversation.Mode)
	}
	if got := res.Conversation.UserTurns(); got != 0 {
		t.Errorf("UserTurns() = %d, want 0", got)
	}
	if res.OpeningMessage.Content != "Welcome! Please introduce yourself." {
		t.Errorf("opening = %q", res.OpeningMessage.Content)
	}
	if res.OpeningMessage.Role != model.RoleAI {
		t.Errorf("opening role = %s", res.OpeningMessage.Role)
	}
	if len(res.Conversation.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(res.Conversation.Messages))
	}
	if res.Conversation.Scenario == nil || res.Conversation.Scenario.Title != "Job Interview" {
		t.Errorf("Scenario = %+v", res.Conversation.Scenario)
	}
	prompt := h.gen.lastPrompt()
	if !strings.Contains(prompt, "hiring manager") || !strings.Contains(prompt, "product role") {
		t.Errorf("opening prompt = %q", prompt)
	}
	if !strings.Contains(prompt, noExtraFocus) {
		t.Errorf("opening prompt should mark missing focus: %q", prompt)
	}
	if got := h.notifier.names(); len(got) != 1 || got[0] != realtime.EventAIMessage {
		t.Errorf("events = %v", got)
	}
}

func TestStartFallbackOpening(t *testing.T) {
	h := newHarness(t)
	h.gen.err = errProviderDown
	sc := h.scenario(t, "Job Interview", "Interview practice.")

	res := h.start(t, StartOptions{ScenarioID: &sc.ID, FocusLabel: "behavioral questions"})

	want := "Welcome to Job Interview. We're focusing on behavioral questions."
	if res.OpeningMessage.Content != want {
		t.Errorf("opening = %q, want %q", res.OpeningMessage.Content, want)
	}
}

func TestStartCustomPrompt(t *testing.T) {
	h := newHarness(t)

	res := h.start(t, StartOptions{CustomPrompt: "Chat about weekend plans.", Focus: "past tense", Mode: model.ModeVoice})

	c := res.Conversation
	if c.CustomTitle == nil || *c.CustomTitle != "Custom scenario" {
		t.Errorf("CustomTitle = %v", c.CustomTitle)
	}
	if c.CustomPrompt == nil || !strings.Contains(*c.CustomPrompt, "past tense") || !strings.Contains(*c.CustomPrompt, "weekend") {
		t.Errorf("CustomPrompt = %v", c.CustomPrompt)
	}
	if c.Mode != model.ModeVoice {
		t.Errorf("Mode = %s", c.Mode)
	}
	if c.Scenario != nil {
		t.Errorf("Scenario = %+v, want nil", c.Scenario)
	}
}

func TestStartFocusOnScenario(t *testing.T) {
	h := newHarness(t)
	sc := h.scenario(t, "Hotel Check-in", "Check into a hotel.")

	res := h.start(t, StartOptions{ScenarioID: &sc.ID, Focus: "polite requests"})

	if res.Conversation.CustomPrompt == nil || *res.Conversation.CustomPrompt != "polite requests" {
		t.Errorf("CustomPrompt = %v, want the focus note", res.Conversation.CustomPrompt)
	}
	if !strings.Contains(h.gen.lastPrompt(), "Learner focus or additional context:\npolite requests") {
		t.Errorf("prompt = %q", h.gen.lastPrompt())
	}
}

func TestStartErrors(t *testing.T) {
	h := newHarness(t)
	missing := uuid.New()
	foreign := &model.Scenario{ID: uuid.New(), Title: "Secret", Prompt: "p", IsCustom: true, CreatedBy: &h.other}
	if err := h.store.Scenarios.Create(context.Background(), foreign); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		userID uuid.UUID
		opts   StartOptions
		want   error
	}{
		{"no scenario and no prompt", h.user, StartOptions{CustomPrompt: "   "}, apperr.ErrInvalidArgument},
		{"unknown scenario", h.user, StartOptions{ScenarioID: &missing}, apperr.ErrNotFound},
		{"unknown user", uuid.New(), StartOptions{CustomPrompt: "x"}, apperr.ErrNotFound},
		{"custom scenario of another user", h.user, StartOptions{ScenarioID: &foreign.ID}, apperr.ErrNotFound},
		{"bad mode", h.user, StartOptions{CustomPrompt: "x", Mode: "VIDEO"}, apperr.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Start(context.Background(), tt.userID, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Start() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	res := h.start(t, StartOptions{CustomPrompt: "Small talk."})
	id := res.Conversation.ID
	if _, err := h.svc.AddTextMessage(context.Background(), id, h.user, "I went hiking"); err != nil {
		t.Fatal(err)
	}

	ev, err := h.svc.Complete(context.Background(), id, h.user)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if ev == nil {
		t.Fatal("Complete() evaluation = nil")
	}
	snap, _ := h.svc.GetSnapshot(context.Background(), id, h.user)
	if snap.Status != model.StatusCompleted || snap.EndedAt == nil {
		t.Fatalf("snapshot = %s ended=%v", snap.Status, snap.EndedAt)
	}
	ended := *snap.EndedAt

	h.svc.now = func() time.Time { return ended.Add(time.Hour) }
	if _, err := h.svc.Complete(context.Background(), id, h.user); err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	snap, _ = h.svc.GetSnapshot(context.Background(), id, h.user)
	if !snap.EndedAt.Equal(ended) {
		t.Errorf("EndedAt moved from %v to %v", ended, *snap.EndedAt)
	}
}

func TestCompleteSwallowsEvaluationFailure(t *testing.T) {
	h := newHarness(t)
	h.eval.err = errProviderDown
	res := h.start(t, StartOptions{CustomPrompt: "Small talk."})

	ev, err := h.svc.Complete(context.Background(), res.Conversation.ID, h.user)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if ev != nil {
		t.Errorf("evaluation = %+v, want nil", ev)
	}
}

func TestCompleteIdle(t *testing.T) {
	h := newHarness(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return base }
	stale := h.start(t, StartOptions{CustomPrompt: "Old chat."})

	h.svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh := h.start(t, StartOptions{CustomPrompt: "New chat."})

	n, err := h.svc.CompleteIdle(context.Background(), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CompleteIdle() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("CompleteIdle() = %d, want 1", n)
	}
	s1, _ := h.svc.GetSnapshot(context.Background(), stale.Conversation.ID, h.user)
	s2, _ := h.svc.GetSnapshot(context.Background(), fresh.Conversation.ID, h.user)
	if s1.Status != model.StatusCompleted {
		t.Errorf("stale status = %s", s1.Status)
	}
	if s2.Status != model.StatusActive {
		t.Errorf("fresh status = %s", s2.Status)
	}
}

type failingSaves struct {
	repository.ConversationRepository
	fail uuid.UUID
}

func (f failingSaves) Save(ctx context.Context, c *model.Conversation) error {
	if c.ID == f.fail {
		return errors.New("disk full")
	}
	return f.ConversationRepository.Save(ctx, c)
}

func TestCompleteIdleContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return base }
	first := h.start(t, StartOptions{CustomPrompt: "First chat."})
	h.svc.now = func() time.Time { return base.Add(time.Minute) }
	second := h.start(t, StartOptions{CustomPrompt: "Second chat."})

	h.store.Conversations = failingSaves{ConversationRepository: h.store.Conversations, fail: first.Conversation.ID}

	n, err := h.svc.CompleteIdle(context.Background(), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CompleteIdle() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("CompleteIdle() = %d, want 1", n)
	}
	s1, _ := h.svc.GetSnapshot(context.Background(), first.Conversation.ID, h.user)
	s2, _ := h.svc.GetSnapshot(context.Background(), second.Conversation.ID, h.user)
	if s1.Status != model.StatusActive {
		t.Errorf("failed conversation status = %s", s1.Status)
	}
	if s2.Status != model.StatusCompleted {
		t.Errorf("second conversation status = %s, want COMPLETED", s2.Status)
	}
}

func TestOwnershipIsHidden(t *testing.T) {
	h := newHarness(t)
	res := h.start(t, StartOptions{CustomPrompt: "Small talk."})
	id := res.Conversation.ID
	ctx := context.Background()

	if _, err := h.svc.GetSnapshot(ctx, id, h.other); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetSnapshot() error = %v", err)
	}
	if _, err := h.svc.AddTextMessage(ctx, id, h.other, "hi"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("AddTextMessage() error = %v", err)
	}
	if _, err := h.svc.Complete(ctx, id, h.other); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Complete() error = %v", err)
	}
	if _, err := h.svc.GetEvaluation(ctx, id, h.other); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetEvaluation() error = %v", err)
	}
	if _, err := h.svc.ListAudioFiles(ctx, id, h.other); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ListAudioFiles() error = %v", err)
	}
	if got := h.mem.MessageCount(id); got != 1 {
		t.Errorf("MessageCount() = %d, want 1", got)
	}
}

func TestGetEvaluationBeforeAnyTurn(t *testing.T) {
	h := newHarness(t)
	res := h.start(t, StartOptions{CustomPrompt: "Small talk."})

	ev, err := h.svc.GetEvaluation(context.Background(), res.Conversation.ID, h.user)
	if err != nil {
		t.Fatalf("GetEvaluation() error = %v", err)
	}
	if ev != nil {
		t.Errorf("GetEvaluation() = %+v, want nil", ev)
	}
}

func TestSynthesize(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Synthesize(context.Background(), h.user, "  ", ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("empty text error = %v", err)
	}

	long := strings.Repeat("é", maxSpeechChars+50)
	sp, err := h.svc.Synthesize(context.Background(), h.user, long, "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if n := len([]rune(h.tts.lastText)); n != maxSpeechChars {
		t.Errorf("synthesized %d runes, want %d", n, maxSpeechChars)
	}
	if sp.MimeType != "audio/mpeg" || sp.AudioBase64 != "bXAz" || sp.Voice != "default-voice" {
		t.Errorf("Speech = %+v", sp)
	}

	if _, err := h.svc.Synthesize(context.Background(), uuid.New(), "hi", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user error = %v", err)
	}

	h.svc.synthesizer = nil
	if _, err := h.svc.Synthesize(context.Background(), h.user, "hi", ""); !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Errorf("unconfigured error = %v", err)
	}
}

func TestSeedScenariosOnlyWhenEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeds := []ScenarioInput{
		{Title: "Job Interview", Prompt: "Interview."},
		{Title: "Ordering at a Restaurant", Prompt: "Order food.", Difficulty: "beginner"},
	}

	n, err := h.svc.SeedScenarios(ctx, seeds)
	if err != nil || n != 2 {
		t.Fatalf("SeedScenarios() = %d, %v", n, err)
	}
	n, err = h.svc.SeedScenarios(ctx, seeds)
	if err != nil || n != 0 {
		t.Fatalf("second SeedScenarios() = %d, %v", n, err)
	}

	list, err := h.svc.ListScenarios(ctx, h.user)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "Job Interview" || list[1].Title != "Ordering at a Restaurant" {
		t.Fatalf("ListScenarios() = %+v", list)
	}
	if list[0].Language != "en" || list[0].IsCustom {
		t.Errorf("seeded scenario = %+v", list[0])
	}
	if list[1].Difficulty == nil || *list[1].Difficulty != "beginner" {
		t.Errorf("Difficulty = %v", list[1].Difficulty)
	}
}

func TestCustomScenarioVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sc, err := h.svc.CreateCustomScenario(ctx, h.user, ScenarioInput{Title: " Pitch ", Prompt: "Pitch a startup."})
	if err != nil {
		t.Fatalf("CreateCustomScenario() error = %v", err)
	}
	if !sc.IsCustom || sc.CreatedBy == nil || *sc.CreatedBy != h.user || sc.Title != "Pitch" {
		t.Errorf("scenario = %+v", sc)
	}

	mine, _ := h.svc.ListScenarios(ctx, h.user)
	theirs, _ := h.svc.ListScenarios(ctx, h.other)
	if len(mine) != 1 || len(theirs) != 0 {
		t.Errorf("visible: mine=%d theirs=%d", len(mine), len(theirs))
	}

	if _, err := h.svc.CreateCustomScenario(ctx, h.user, ScenarioInput{Title: "x"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("missing prompt error = %v", err)
	}
}

func TestLoadShippedSeed(t *testing.T) {
	seeds, err := LoadSeed("../../configs/default-scenarios.json")
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if len(seeds) == 0 {
		t.Fatal("no seeds")
	}
	for _, s := range seeds {
		if s.Title == "" || s.Prompt == "" {
			t.Errorf("incomplete seed %+v", s)
		}
	}
}

func TestNextTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		last time.Time
		want time.Time
	}{
		{"after last", base.Add(time.Second), base, base.Add(time.Second)},
		{"equal to last", base, base, base.Add(time.Microsecond)},
		{"clock went back", base.Add(-time.Minute), base, base.Add(time.Microsecond)},
		{"sub-microsecond truncated", base.Add(1500 * time.Nanosecond), time.Time{}, base.Add(time.Microsecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextTimestamp(tt.now, tt.last); !got.Equal(tt.want) {
				t.Errorf("nextTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}
