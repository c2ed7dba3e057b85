package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves a locale to use based on explicit query param, Accept-Language header,
// supported locales, and a default fallback. Supported values should be base languages like "en", "zh".
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	if len(supported) == 0 {
		return "en"
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tags = append(tags, language.Make(strings.ToLower(s)))
	}
	matcher := language.NewMatcher(tags)

	pick := func(candidates []language.Tag) (string, bool) {
		if len(candidates) == 0 {
			return "", false
		}
		_, idx, conf := matcher.Match(candidates...)
		if conf == language.No {
			return "", false
		}
		return strings.ToLower(supported[idx]), true
	}

	if queryLang != "" {
		if tag, err := language.Parse(queryLang); err == nil {
			if v, ok := pick([]language.Tag{tag}); ok {
				return v
			}
		}
	}
	if acceptLang != "" {
		if prefs, _, err := language.ParseAcceptLanguage(acceptLang); err == nil {
			if v, ok := pick(prefs); ok {
				return v
			}
		}
	}
	for _, s := range supported {
		if strings.EqualFold(s, def) {
			return strings.ToLower(s)
		}
	}
	return strings.ToLower(supported[0])
}
