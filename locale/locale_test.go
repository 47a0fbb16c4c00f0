package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func newTestService() *Service {
	return NewService(map[string]map[string]string{
		"en":    {"greet": "Hello {{name}}, you have {{count}} items", "only-en": "english"},
		"ru":    {"greet": "Привет {{name}}"},
		"pt-BR": {"greet": "Olá {{name}}"},
		"ch":    {"greet": "你好"},
	}, "en", nopLogger())
}

func TestResolve(t *testing.T) {
	s := newTestService()
	tests := []struct {
		lang string
		want string
	}{
		{"ru", "ru"},
		{"ru-RU", "ru"},
		{"pt", "pt-BR"},
		{"pt-BR", "pt-BR"},
		{"en-GB", "en"},
		{"de", "en"},
		{"", "en"},
		{"not a tag!", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Resolve(tt.lang), "lang %q", tt.lang)
	}
}

func TestGetText(t *testing.T) {
	s := newTestService()

	assert.Equal(t, "Hello Bob, you have 3 items", s.GetText("en", "greet", map[string]any{"name": "Bob", "count": 3}))
	assert.Equal(t, "Привет Bob", s.GetText("ru", "greet", map[string]any{"name": "Bob"}))
	assert.Equal(t, "english", s.GetText("ru", "only-en", nil))
	assert.Equal(t, "missing.key", s.GetText("ru", "missing.key", nil))
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"ch", "en", "pt-BR", "ru"}, newTestService().Languages())
}

func TestEmptyTables(t *testing.T) {
	s := NewService(nil, "en", nopLogger())
	assert.Equal(t, "en", s.Resolve("fr"))
	assert.Equal(t, "k", s.GetText("fr", "k", nil))
}
