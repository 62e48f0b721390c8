// Package localization provides the canned strings used in conversations and on the
// operator channel. Catalogs are JSON files named after their language code
// (e.g. "en.json") and are embedded into the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// DefaultLanguage is used when a key is missing from the requested language.
const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

type catalog map[string]string

// Localizer holds one read-only catalog per language.
type Localizer struct {
	catalogs map[string]catalog
}

// NewDefault returns a Localizer loaded from the embedded locales.
func NewDefault() (*Localizer, error) {
	return NewLocalizer(embedded, "locales")
}

// NewLocalizer loads every *.json catalog in dir. The default language is required.
func NewLocalizer(fsys fs.FS, dir string) (*Localizer, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("localization: read %s: %w", dir, err)
	}

	catalogs := make(map[string]catalog, len(entries))
	for _, entry := range entries {
		lang, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok {
			continue
		}
		c, err := loadCatalog(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		catalogs[lang] = c
	}

	if _, ok := catalogs[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("localization: %s has no %s.json", dir, DefaultLanguage)
	}
	return &Localizer{catalogs: catalogs}, nil
}

func loadCatalog(fsys fs.FS, name string) (catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("localization: read %s: %w", name, err)
	}
	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("localization: parse %s: %w", name, err)
	}
	return c, nil
}

// GetString looks key up in lang, then in the default language, and returns the
// key itself when neither has it.
func (l *Localizer) GetString(lang, key string) string {
	for _, candidate := range [...]string{lang, DefaultLanguage} {
		if value, ok := l.catalogs[candidate][key]; ok {
			return value
		}
	}
	return key
}

// Format looks up key in the default language and applies fmt.Sprintf with args.
func (l *Localizer) Format(key string, args ...interface{}) string {
	return fmt.Sprintf(l.GetString(DefaultLanguage, key), args...)
}
