package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"speakup/internal/apperr"
	"speakup/internal/confload"
	"speakup/internal/model"
)

// ScenarioInput describes a scenario to create, either learner-authored or seeded.
type ScenarioInput struct {
	Title       string `json:"title" yaml:"title" binding:"required"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt" binding:"required"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
	Difficulty  string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// EnsureUser registers an authenticated learner on first sight.
func (s *Service) EnsureUser(ctx context.Context, userID uuid.UUID, name string) error {
	return s.store.Users.EnsureUser(ctx, &model.User{ID: userID, Name: name, CreatedAt: s.now().UTC()})
}

// ListScenarios returns built-in scenarios plus the user's own, oldest first.
func (s *Service) ListScenarios(ctx context.Context, userID uuid.UUID) ([]model.Scenario, error) {
	return s.store.Scenarios.ListVisible(ctx, userID)
}

// CreateCustomScenario stores a learner-authored scenario.
func (s *Service) CreateCustomScenario(ctx context.Context, userID uuid.UUID, in ScenarioInput) (*model.Scenario, error) {
	if _, err := s.store.Users.FindUser(ctx, userID); err != nil {
		return nil, err
	}
	sc, err := s.newScenario(in)
	if err != nil {
		return nil, err
	}
	sc.IsCustom = true
	sc.CreatedBy = &userID
	if err := s.store.Scenarios.Create(ctx, sc); err != nil {
		return nil, err
	}
	log.Printf("[Orchestrator] User %s created custom scenario %s", userID, sc.ID)
	return sc, nil
}

// LoadSeed reads built-in scenario definitions from a JSON or YAML file.
func LoadSeed(path string) ([]ScenarioInput, error) {
	var in []ScenarioInput
	if err := confload.File(path, &in); err != nil {
		return nil, fmt.Errorf("unable to load scenario seed: %w", err)
	}
	return in, nil
}

// SeedScenarios inserts built-in scenarios when none exist yet.
func (s *Service) SeedScenarios(ctx context.Context, seeds []ScenarioInput) (int, error) {
	n, err := s.store.Scenarios.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || len(seeds) == 0 {
		return 0, nil
	}

	base := s.now().UTC().Truncate(time.Microsecond)
	scenarios := make([]model.Scenario, 0, len(seeds))
	for i, in := range seeds {
		sc, err := s.newScenario(in)
		if err != nil {
			return 0, fmt.Errorf("seed %d: %w", i, err)
		}
		// keep file order when listing by created-at
		sc.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		sc.UpdatedAt = sc.CreatedAt
		scenarios = append(scenarios, *sc)
	}
	if err := s.store.Scenarios.CreateMany(ctx, scenarios); err != nil {
		return 0, err
	}
	log.Printf("[Orchestrator] Seeded %d built-in scenarios", len(scenarios))
	return len(scenarios), nil
}

func (s *Service) newScenario(in ScenarioInput) (*model.Scenario, error) {
	title := strings.TrimSpace(in.Title)
	prompt := strings.TrimSpace(in.Prompt)
	if title == "" || prompt == "" {
		return nil, fmt.Errorf("%w: scenario title and prompt are required", apperr.ErrInvalidArgument)
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "en"
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	sc := &model.Scenario{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Prompt:      prompt,
		Language:    language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d := strings.TrimSpace(in.Difficulty); d != "" {
		sc.Difficulty = &d
	}
	return sc, nil
}
