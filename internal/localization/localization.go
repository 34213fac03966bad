// Package localization provides the localized system notices the chat
// gateway emits (conversation started, message removed, ...). English
// defaults are built in; per-language JSON files can override or extend them.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// defaults is the built-in English catalog.
var defaults = map[string]string{
	"chat.conversation_started": "Conversation started. Say hello!",
	"chat.message_removed":      "Message removed.",
	"chat.send_failed":          "Your message could not be delivered. It has been restored to the input.",
	"chat.empty_message":        "A message cannot be empty.",
}

// Localizer resolves notice keys per language, falling back to English and
// finally to the key itself.
type Localizer struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
}

// New returns a Localizer carrying the built-in English catalog.
func New() *Localizer {
	en := make(map[string]string, len(defaults))
	for k, v := range defaults {
		en[k] = v
	}
	return &Localizer{translations: map[string]map[string]string{"en": en}}
}

// LoadDir merges per-language JSON files from path into the catalog. Files
// are named by language code (e.g. "uk.json"); keys already present for that
// language are overridden.
func (l *Localizer) LoadDir(path string) error {
	files, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read localization directory: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(path, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}
		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string, len(translations))
		}
		for k, v := range translations {
			l.translations[lang][k] = v
		}
	}
	return nil
}

// Get returns the localized string for key in lang, falling back to English
// and then to the key itself.
func (l *Localizer) Get(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if translations, ok := l.translations[lang]; ok {
		if value, ok := translations[key]; ok {
			return value
		}
	}
	if lang != "en" {
		if en, ok := l.translations["en"]; ok {
			if value, ok := en[key]; ok {
				return value
			}
		}
	}
	return key
}
