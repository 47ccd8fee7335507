package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"speakup/internal/ai"
	"speakup/internal/apperr"
	"speakup/internal/model"
	"speakup/internal/repository"
	"speakup/internal/scenario"
	"speakup/internal/storage"
	"speakup/internal/stt"
	"speakup/internal/tts"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeTranscriber struct {
	result *stt.Result
	err    error
	calls  int
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (*stt.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSynthesizer struct {
	lastText string
}

func (f *fakeSynthesizer) Name() string { return "fake" }

func (f *fakeSynthesizer) Synthesize(_ context.Context, text, voice string) (*tts.Result, error) {
	f.lastText = text
	if voice == "" {
		voice = "default-voice"
	}
	return &tts.Result{Audio: []byte("mp3"), MimeType: "audio/mpeg", Voice: voice}, nil
}

type fakeEvaluator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, id uuid.UUID) (*model.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Evaluation{ID: uuid.New(), ConversationID: id, GrammarScore: 7}, nil
}

type emitted struct {
	conversationID uuid.UUID
	event          string
	payload        interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *recordingNotifier) Emit(id uuid.UUID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{id, event, payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.event
	}
	return out
}

const testFollowUpTemplate = "PERSONA={{persona}}\nBRIEF={{scenarioBrief}}\nHISTORY={{historyLines}}\nLATEST={{latestUserText}}\nTURNS={{userTurnCount}}\nCLOSE={{learnerWantsToClose}}\nDIRECTIVE={{closureDirective}}\nAVOID={{avoidRepetitionInstruction}}"

func testCatalog(t *testing.T) *scenario.Catalog {
	t.Helper()
	c, err := scenario.New(scenario.File{
		DefaultScenario: scenario.Definition{
			Key: "general",
			Guidance: scenario.Guidance{
				Persona: "friendly partner", Progression: "keep going", Closing: "say goodbye", MaxUserTurns: 8,
			},
			Fallbacks: scenario.Fallbacks{
				Opening:   "Hello!{{contextSentence}} Tell me about yourself.",
				FollowUps: []string{"general-0", "general-1", "general-2"},
			},
		},
		Scenarios: []scenario.Definition{{
			Key:      "job-interview",
			Keywords: []string{"job interview", "interview"},
			Guidance: scenario.Guidance{
				Persona: "hiring manager", Opening: "welcome the candidate",
				Progression: "ASK NEXT QUESTION", Closing: "CLOSE THE INTERVIEW", MaxUserTurns: 5,
			},
			Fallbacks: scenario.Fallbacks{
				Opening:   "Welcome to {{scenarioTitle}}.{{contextSentence}}",
				FollowUps: []string{"interview-0", "interview-1"},
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type harness struct {
	svc      *Service
	mem      *repository.MemoryStore
	store    *repository.Store
	gen      *fakeGenerator
	stt      *fakeTranscriber
	tts      *fakeSynthesizer
	eval     *fakeEvaluator
	notifier *recordingNotifier
	audio    *storage.AudioStore
	user     uuid.UUID
	other    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := repository.NewMemoryStore()
	h := &harness{
		mem:      mem,
		store:    mem.Store(),
		gen:      &fakeGenerator{reply: "Generated reply."},
		stt:      &fakeTranscriber{result: &stt.Result{Text: "I like hiking", Provider: "fake"}},
		tts:      &fakeSynthesizer{},
		eval:     &fakeEvaluator{},
		notifier: &recordingNotifier{},
		audio:    storage.NewAudioStore(t.TempDir()),
		user:     uuid.New(),
		other:    uuid.New(),
	}
	mem.PutUser(model.User{ID: h.user, Name: "learner"})
	mem.PutUser(model.User{ID: h.other, Name: "someone else"})

	h.svc = NewService(Deps{
		Store:   h.store,
		Catalog: testCatalog(t),
		Templates: &ai.Templates{
			Opening:  ai.PromptTemplate{Template: "OPEN {{persona}} {{scenarioPrompt}} {{extraFocus}} {{openingObjective}}"},
			FollowUp: ai.PromptTemplate{Template: testFollowUpTemplate},
		},
		Generator:   h.gen,
		Transcriber: h.stt,
		Synthesizer: h.tts,
		Audio:       h.audio,
		Evaluator:   h.eval,
		Notifier:    h.notifier,
	})
	return h
}

func (h *harness) scenario(t *testing.T, title, prompt string) *model.Scenario {
	t.Helper()
	sc := &model.Scenario{ID: uuid.New(), Title: title, Prompt: prompt, Language: "en", CreatedAt: time.Now()}
	if err := h.store.Scenarios.Create(context.Background(), sc); err != nil {
		t.Fatal(err)
	}
	return sc
}

func (h *harness) start(t *testing.T, opts StartOptions) *StartResult {
	t.Helper()
	res, err := h.svc.Start(context.Background(), h.user, opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return res
}

func (h *harness) messages(t *testing.T, id uuid.UUID) []model.Message {
	t.Helper()
	msgs, err := h.store.Messages.ListByConversation(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}

var errProviderDown = errors.Join(apperr.ErrProviderUnavailable, errors.New("connection refused"))
