package config

import (
	"fmt"
	"strings"
)

// Language is a locale tag carried through from the config files. Only the tag is
// resolved here; message catalogs live with the editor plugin.
type Language string

const (
	LanguageUnset    Language = ""
	LanguageEnglish  Language = "en"
	LanguageChinese  Language = "zh"
	LanguageJapanese Language = "ja"
	LanguageKorean   Language = "ko"
	LanguageSpanish  Language = "es"
	LanguageFrench   Language = "fr"
	LanguageGerman   Language = "de"
	LanguageRussian  Language = "ru"
)

var languageAliases = map[string]Language{
	"en": LanguageEnglish, "english": LanguageEnglish,
	"zh": LanguageChinese, "chinese": LanguageChinese, "cn": LanguageChinese,
	"ja": LanguageJapanese, "japanese": LanguageJapanese,
	"ko": LanguageKorean, "korean": LanguageKorean,
	"es": LanguageSpanish, "spanish": LanguageSpanish,
	"fr": LanguageFrench, "french": LanguageFrench,
	"de": LanguageGerman, "german": LanguageGerman,
	"ru": LanguageRussian, "russian": LanguageRussian,
}

// ParseLanguage accepts a short tag or an English language name, case-insensitively.
// An empty string yields LanguageUnset.
func ParseLanguage(s string) (Language, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LanguageUnset, nil
	}
	if lang, ok := languageAliases[s]; ok {
		return lang, nil
	}
	return LanguageUnset, fmt.Errorf("unknown language %q", s)
}

func (l Language) String() string {
	if l == LanguageUnset {
		return "auto"
	}
	return string(l)
}
