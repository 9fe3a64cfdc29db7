package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// LanguageConfig wraps the locale used for document formatting
type LanguageConfig struct {
	tag language.Tag
}

// ParseLanguage parses a BCP 47 or POSIX-style locale ("pt_BR.UTF-8").
// An empty tag defaults to Brazilian Portuguese.
func ParseLanguage(langTag string) (*LanguageConfig, error) {
	langTag = strings.TrimSpace(langTag)
	if langTag == "" {
		return &LanguageConfig{tag: language.BrazilianPortuguese}, nil
	}

	// Strip the encoding and convert to BCP 47 separators
	langTag = strings.Split(langTag, ".")[0]
	langTag = strings.ReplaceAll(langTag, "_", "-")

	tag, err := language.Parse(langTag)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", langTag, err)
	}
	return &LanguageConfig{tag: tag}, nil
}

// Tag returns the underlying language tag
func (lc *LanguageConfig) Tag() language.Tag {
	return lc.tag
}

// String returns the language tag as a string (e.g., "pt-BR")
func (lc *LanguageConfig) String() string {
	return lc.tag.String()
}

// DisplayName returns the base language code (e.g., "pt")
func (lc *LanguageConfig) DisplayName() string {
	base, _ := lc.tag.Base()
	return base.String()
}

// LocaleTag returns the configured locale, falling back to pt-BR
func (c *Config) LocaleTag() language.Tag {
	lc, err := ParseLanguage(c.Locale)
	if err != nil {
		return language.BrazilianPortuguese
	}
	return lc.Tag()
}

// ValidLocales returns the locales the built-in document texts are written for
func ValidLocales() []string {
	return []string{
		"pt-BR", // Brazilian Portuguese
		"pt-PT", // European Portuguese
		"es",    // Spanish
		"en",    // English
	}
}
