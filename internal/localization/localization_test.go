package localization_test

import (
	"testing"
	"testing/fstest"

	"supportdesk/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault_LoadsEmbeddedCatalog(t *testing.T) {
	l, err := localization.NewDefault()
	require.NoError(t, err)

	for _, key := range []string{"welcome", "handoff", "fallback_reply", "status_changed_by_user", "status_changed_by_team"} {
		assert.NotEqual(t, key, l.GetString("en", key), "key %q must be translated", key)
	}
}

func TestGetString_FallsBackToEnglishThenKey(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json":   {Data: []byte(`{"greeting":"Hello","only_en":"English only"}`)},
		"i18n/uk.json":   {Data: []byte(`{"greeting":"Привіт"}`)},
		"i18n/notes.txt": {Data: []byte(`ignored`)},
	}

	l, err := localization.NewLocalizer(fsys, "i18n")
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("uk", "greeting"))
	assert.Equal(t, "English only", l.GetString("uk", "only_en"))
	assert.Equal(t, "missing_key", l.GetString("uk", "missing_key"))
	assert.Equal(t, "Hello", l.GetString("de", "greeting"))
	assert.Equal(t, "Hello", l.GetString("", "greeting"))
}

func TestNewLocalizer_RequiresDefaultLanguage(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/uk.json": {Data: []byte(`{"greeting":"Привіт"}`)},
	}
	_, err := localization.NewLocalizer(fsys, "i18n")
	assert.Error(t, err)
}

func TestNewLocalizer_RejectsBrokenJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json": {Data: []byte(`{"greeting":`)},
	}
	_, err := localization.NewLocalizer(fsys, "i18n")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	l, err := localization.NewDefault()
	require.NoError(t, err)

	assert.Contains(t, l.Format("welcome", "Ana"), "Ana")
}
