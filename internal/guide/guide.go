// Package guide serves the static prompting guide shown in guide mode.
package guide

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed guide.yaml
var defaultGuide []byte

// Principle is one numbered step with a bad and a good example prompt.
type Principle struct {
	Title   string `yaml:"title" json:"title"`
	Summary string `yaml:"summary" json:"summary"`
	Bad     string `yaml:"bad" json:"bad"`
	Good    string `yaml:"good" json:"good"`
}

// Strategy is one advanced tip.
type Strategy struct {
	Name string `yaml:"name" json:"name"`
	Tip  string `yaml:"tip" json:"tip"`
}

// Guide is the whole guide document.
type Guide struct {
	Title           string      `yaml:"title" json:"title"`
	Intro           string      `yaml:"intro" json:"intro"`
	Principles      []Principle `yaml:"principles" json:"principles"`
	StrategiesTitle string      `yaml:"strategies_title" json:"strategies_title"`
	Strategies      []Strategy  `yaml:"strategies" json:"strategies"`
	Outro           string      `yaml:"outro" json:"outro"`
}

// Parse decodes a guide document and checks it has the required parts.
func Parse(data []byte) (*Guide, error) {
	var g Guide
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse guide: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate rejects a guide with no title or no principles.
func (g *Guide) Validate() error {
	if g.Title == "" {
		return errors.New("guide: title is required")
	}
	if len(g.Principles) == 0 {
		return errors.New("guide: at least one principle is required")
	}
	for i, p := range g.Principles {
		if p.Title == "" {
			return fmt.Errorf("guide: principle %d has no title", i+1)
		}
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultDoc  *Guide
	defaultErr  error
)

// Default returns the embedded guide.
func Default() (*Guide, error) {
	defaultOnce.Do(func() {
		defaultDoc, defaultErr = Parse(defaultGuide)
	})
	return defaultDoc, defaultErr
}
