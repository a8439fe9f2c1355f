// Package settings holds the highlighter's user settings and the providers
// that load and watch them: a YAML file and a SQLite store.
package settings

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/phrasemark/phrase"
)

// DefaultHost is the only host allowed out of the box.
const DefaultHost = "app.intercom.com"

// Settings is the whole user configuration.
type Settings struct {
	Enabled      bool            `yaml:"enabled" json:"enabled"`
	AllowedHosts []string        `yaml:"sites" json:"sites"`
	Phrases      []phrase.Phrase `yaml:"phrases" json:"phrases"`
}

// Default returns the settings used when nothing is stored.
func Default() Settings {
	return Settings{
		Enabled:      true,
		AllowedHosts: []string{DefaultHost},
		Phrases:      []phrase.Phrase{},
	}
}

// NormalizeHost lower-cases a host name and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// Allowed reports whether the highlighter should run on host.
func (s Settings) Allowed(host string) bool {
	if !s.Enabled {
		return false
	}
	host = NormalizeHost(host)
	if host == "" {
		return false
	}
	for _, h := range s.AllowedHosts {
		if NormalizeHost(h) == host {
			return true
		}
	}
	return false
}

// Decode parses YAML (JSON is valid YAML) on top of the defaults, so keys
// missing from data keep their default values. Legacy {find, replace}
// phrase entries are normalized.
func Decode(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	if s.AllowedHosts == nil {
		s.AllowedHosts = []string{}
	}
	if s.Phrases == nil {
		s.Phrases = []phrase.Phrase{}
	}
	return s, nil
}

// Provider loads settings and reports later changes.
type Provider interface {
	Load(ctx context.Context) (Settings, error)
	// Watch blocks until ctx is done, calling fn with the new settings after
	// every change.
	Watch(ctx context.Context, fn func(Settings)) error
}
