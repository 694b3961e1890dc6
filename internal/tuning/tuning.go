// Package tuning loads operational tuning for the session server. Values
// not present in the file fall back to defaults that match the game client.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz    int `yaml:"tick_rate_hz"`
	MaxNameLength int `yaml:"max_name_length"`

	DefaultGroundY  float64 `yaml:"default_ground_y"`
	DefaultMapWidth float64 `yaml:"default_map_width"`

	// Outbound queue size per connection; a full queue drops the frame for
	// that recipient instead of blocking the broadcaster.
	SendQueue int `yaml:"send_queue"`

	Agents []AgentSpec `yaml:"agents"`

	TextGen TextGen `yaml:"text_gen"`
}

// AgentSpec is one roster entry. Agents spawn in file order when the first
// human session joins.
type AgentSpec struct {
	DisplayName string `yaml:"display_name"`
	Personality string `yaml:"personality"`
}

type TextGen struct {
	APIURL         string  `yaml:"api_url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, err
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:      60,
		MaxNameLength:   12,
		DefaultGroundY:  300,
		DefaultMapWidth: 800,
		SendQueue:       64,
		Agents: []AgentSpec{
			{DisplayName: "Grokzilla", Personality: "explorer"},
			{DisplayName: "QuantumGPT", Personality: "friendly"},
			{DisplayName: "ClippyReborn", Personality: "friendly"},
			{DisplayName: "GEMIN-EYE", Personality: "explorer"},
		},
		TextGen: TextGen{
			APIURL:         "https://api.groq.com/openai/v1/chat/completions",
			Model:          "llama-3.1-8b-instant",
			TimeoutSeconds: 15,
			RequestsPerSec: 1,
			Burst:          2,
		},
	}
}

func (t Tuning) validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	}
	if t.MaxNameLength <= 0 {
		return fmt.Errorf("max_name_length must be positive, got %d", t.MaxNameLength)
	}
	if t.SendQueue <= 0 {
		return fmt.Errorf("send_queue must be positive, got %d", t.SendQueue)
	}
	for i, a := range t.Agents {
		if a.DisplayName == "" {
			return fmt.Errorf("agents[%d]: display_name required", i)
		}
	}
	return nil
}
