package scenario

import (
	"fmt"
	"log"
	"strings"

	"speakup/internal/confload"
)

// Key identifies a scenario definition in the catalog.
type Key = string

// Guidance steers the conversational partner for one scenario.
type Guidance struct {
	Persona      string `json:"persona" yaml:"persona"`
	Tone         string `json:"tone" yaml:"tone"`
	Focus        string `json:"focus" yaml:"focus"`
	Opening      string `json:"opening" yaml:"opening"`
	Progression  string `json:"progression" yaml:"progression"`
	Closing      string `json:"closing" yaml:"closing"`
	MaxUserTurns int    `json:"maxUserTurns" yaml:"maxUserTurns"`
}

// Fallbacks are canned lines used when text generation fails.
type Fallbacks struct {
	Opening   string   `json:"opening,omitempty" yaml:"opening,omitempty"`
	FollowUps []string `json:"followUps" yaml:"followUps"`
}

// Definition is one entry of the declarative scenario configuration.
type Definition struct {
	Key       Key       `json:"key" yaml:"key"`
	Keywords  []string  `json:"keywords" yaml:"keywords"`
	Guidance  Guidance  `json:"guidance" yaml:"guidance"`
	Fallbacks Fallbacks `json:"fallbacks" yaml:"fallbacks"`
}

// File is the on-disk schema.
type File struct {
	DefaultScenario Definition   `json:"defaultScenario" yaml:"defaultScenario"`
	Scenarios       []Definition `json:"scenarios" yaml:"scenarios"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	def       Definition
	scenarios []Definition
	byKey     map[Key]Definition
}

// Load reads the scenario configuration from a JSON or YAML file.
func Load(path string) (*Catalog, error) {
	var f File
	if err := confload.File(path, &f); err != nil {
		return nil, fmt.Errorf("unable to load scenario config: %w", err)
	}
	c, err := New(f)
	if err != nil {
		return nil, err
	}
	log.Printf("[Scenario] Loaded %d scenario definitions from %s (default=%s)", len(f.Scenarios), path, f.DefaultScenario.Key)
	return c, nil
}

// New validates f and builds a catalog from it.
func New(f File) (*Catalog, error) {
	if f.DefaultScenario.Key == "" {
		return nil, fmt.Errorf("scenario config: default scenario key is required")
	}
	if len(f.DefaultScenario.Fallbacks.FollowUps) == 0 {
		return nil, fmt.Errorf("scenario config: default scenario needs at least one follow-up fallback")
	}

	c := &Catalog{
		def:       normalize(f.DefaultScenario),
		scenarios: make([]Definition, 0, len(f.Scenarios)),
		byKey:     make(map[Key]Definition, len(f.Scenarios)),
	}
	for _, d := range f.Scenarios {
		if d.Key == "" {
			return nil, fmt.Errorf("scenario config: scenario without key")
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, fmt.Errorf("scenario config: duplicate key %q", d.Key)
		}
		d = normalize(d)
		c.scenarios = append(c.scenarios, d)
		c.byKey[d.Key] = d
	}
	return c, nil
}

func normalize(d Definition) Definition {
	kw := make([]string, 0, len(d.Keywords))
	for _, k := range d.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	d.Keywords = kw
	if d.Guidance.MaxUserTurns <= 0 {
		d.Guidance.MaxUserTurns = 6
	}
	return d
}

// DefaultKey returns the key of the default scenario.
func (c *Catalog) DefaultKey() Key {
	return c.def.Key
}

// ResolveKey returns the first scenario, in configuration order, with a keyword
// contained in label or promptText (case-insensitive). Falls back to the default key.
func (c *Catalog) ResolveKey(label, promptText string) Key {
	haystack := strings.ToLower(label + " " + promptText)
	for _, d := range c.scenarios {
		for _, kw := range d.Keywords {
			if strings.Contains(haystack, kw) {
				return d.Key
			}
		}
	}
	return c.def.Key
}

func (c *Catalog) definition(key Key) Definition {
	if d, ok := c.byKey[key]; ok {
		return d
	}
	return c.def
}

// GuidanceFor returns the guidance block for key, or the default scenario's.
func (c *Catalog) GuidanceFor(key Key) Guidance {
	return c.definition(key).Guidance
}

// FallbacksFor returns the fallbacks for key. Scenarios without follow-up lines
// use the default scenario's fallbacks.
func (c *Catalog) FallbacksFor(key Key) Fallbacks {
	d := c.definition(key)
	if len(d.Fallbacks.FollowUps) > 0 {
		return d.Fallbacks
	}
	return c.def.Fallbacks
}

// DefaultFallbacks returns the default scenario's fallbacks.
func (c *Catalog) DefaultFallbacks() Fallbacks {
	return c.def.Fallbacks
}
