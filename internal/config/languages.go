package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultLanguageNames maps the ISO codes the frontend sends to the language
// names the translator prompt expects.
var defaultLanguageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"yo": "Yoruba",
	"ar": "Arabic",
	"sw": "Swahili",
	"am": "Amharic",
}

// LanguageMap resolves ISO language codes to full language names.
type LanguageMap struct {
	names map[string]string
}

// LoadLanguageMap builds the language map, applying the optional YAML override
// file on top of the built-in defaults.
func LoadLanguageMap(path string) (LanguageMap, error) {
	names := make(map[string]string, len(defaultLanguageNames))
	for k, v := range defaultLanguageNames {
		names[k] = v
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return LanguageMap{}, fmt.Errorf("op=config.LoadLanguageMap: %w", err)
		}
		var override map[string]string
		if err := yaml.Unmarshal(b, &override); err != nil {
			return LanguageMap{}, fmt.Errorf("op=config.LoadLanguageMap: %w", err)
		}
		for k, v := range override {
			names[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return LanguageMap{names: names}, nil
}

// Name returns the language name for a code; unknown codes pass through so the
// translator still receives something usable.
func (m LanguageMap) Name(code string) string {
	if n, ok := m.names[strings.ToLower(strings.TrimSpace(code))]; ok {
		return n
	}
	return code
}

// IsEnglish reports whether the given code or name means English. English input
// skips the translation round-trip entirely.
func IsEnglish(lang string) bool {
	l := strings.ToLower(strings.TrimSpace(lang))
	return l == "" || l == "en" || l == "english"
}
