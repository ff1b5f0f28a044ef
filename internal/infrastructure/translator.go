package infrastructure

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const DefaultLanguage = "ar"

// Translator resolves notification and mail copy for a tenant language.
type Translator struct {
	bundle *i18n.Bundle
}

func NewTranslator() (*Translator, error) {
	bundle := i18n.NewBundle(language.Arabic)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := path.Join("locales", e.Name())
		buf, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(buf, name); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

// T returns the message for id, falling back to Arabic and then to the id itself.
func (t *Translator) T(lang, id string, data map[string]any) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	loc := i18n.NewLocalizer(t.bundle, lang, DefaultLanguage)
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return msg
}

var supportedLanguages = []string{"ar", "en"}

func SupportedLanguages() []string {
	return append([]string(nil), supportedLanguages...)
}

func SupportedLanguage(lang string) bool {
	for _, l := range supportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
