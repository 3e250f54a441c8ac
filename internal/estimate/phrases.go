package estimate

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrases []byte

// Phrases is the static text used by the templated body.
type Phrases struct {
	Greeting      GreetingPhrases `yaml:"greeting"`
	Labels        Labels          `yaml:"labels"`
	Introductions []string        `yaml:"introductions"`
	Disclaimers   []string        `yaml:"disclaimers"`
	CTAs          []string        `yaml:"ctas"`
	Finals        []string        `yaml:"finals"`
}

// GreetingPhrases configures the name-aware greeting.
type GreetingPhrases struct {
	Informal            string   `yaml:"informal"`
	Vocative            string   `yaml:"vocative"`
	Formal              string   `yaml:"formal"`
	InformalNames       []string `yaml:"informal_names"`
	VocativeSuffix      string   `yaml:"vocative_suffix"`
	VocativeReplacement string   `yaml:"vocative_replacement"`
}

// Labels are the fixed captions of the price listing.
type Labels struct {
	Category string `yaml:"category"`
	Details  string `yaml:"details"`
	Total    string `yaml:"total"`
	NoPrice  string `yaml:"no_price"`
	Signoff  string `yaml:"signoff"`
}

// DefaultPhrases returns the embedded phrase pools.
func DefaultPhrases() (*Phrases, error) {
	return ParsePhrases(defaultPhrases)
}

// ParsePhrases decodes a phrase file and checks every pool is non-empty.
func ParsePhrases(data []byte) (*Phrases, error) {
	var p Phrases
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode phrases: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Phrases) validate() error {
	pools := map[string][]string{
		"introductions": p.Introductions,
		"disclaimers":   p.Disclaimers,
		"ctas":          p.CTAs,
		"finals":        p.Finals,
	}
	for name, pool := range pools {
		if len(pool) == 0 {
			return fmt.Errorf("phrases: pool %q is empty", name)
		}
	}
	if p.Greeting.Formal == "" {
		return errors.New("phrases: greeting.formal is required")
	}
	return nil
}
