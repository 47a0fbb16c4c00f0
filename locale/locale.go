// Package locale resolves localized text for a player's language.
package locale

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Service holds locale tables keyed by language name.
type Service struct {
	tables   map[string]map[string]string
	names    []string // names[i] matches tags[i]; names[0] is the default
	matcher  language.Matcher
	fallback string
	logger   *zap.Logger
}

// NewService builds a Service over tables. defaultLang is used when a
// requested language cannot be matched and for keys a table lacks.
func NewService(tables map[string]map[string]string, defaultLang string, logger *zap.Logger) *Service {
	s := &Service{tables: tables, fallback: defaultLang, logger: logger}

	others := make([]string, 0, len(tables))
	for name := range tables {
		if name != defaultLang {
			others = append(others, name)
		}
	}
	sort.Strings(others)

	var tags []language.Tag
	for _, name := range append([]string{defaultLang}, others...) {
		tag, err := language.Parse(name)
		if err != nil {
			logger.Warn("locale name is not a language tag, exact match only", zap.String("locale", name))
			continue
		}
		s.names = append(s.names, name)
		tags = append(tags, tag)
	}
	if len(tags) > 0 {
		s.matcher = language.NewMatcher(tags)
	}
	return s
}

// Languages returns the loaded locale names in sorted order.
func (s *Service) Languages() []string {
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the loaded locale name that best serves lang.
func (s *Service) Resolve(lang string) string {
	if _, ok := s.tables[lang]; ok {
		return lang
	}
	if s.matcher == nil || lang == "" {
		return s.fallback
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return s.fallback
	}
	_, idx, conf := s.matcher.Match(tag)
	if conf == language.No {
		return s.fallback
	}
	return s.names[idx]
}

// Lookup returns the raw text for key in lang, falling back to the default
// language.
func (s *Service) Lookup(lang, key string) (string, bool) {
	if text, ok := s.tables[s.Resolve(lang)][key]; ok {
		return text, true
	}
	text, ok := s.tables[s.fallback][key]
	return text, ok
}

// GetText returns the text for key with {{name}} placeholders replaced from
// params. A missing key returns the key itself.
func (s *Service) GetText(lang, key string, params map[string]any) string {
	text, ok := s.Lookup(lang, key)
	if !ok {
		s.logger.Debug("locale key missing", zap.String("lang", lang), zap.String("key", key))
		return key
	}
	if len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for name, v := range params {
		pairs = append(pairs, "{{"+name+"}}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
