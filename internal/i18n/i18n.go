package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var bundle *i18n.Bundle

// Init loads the translation bundle with the given default language tag.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle = i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", jsonUnmarshal)

	// Load all locale files from embedded FS.
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	return nil
}

// NewLocalizer creates a localizer for the given languages, most preferred first.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// localizerFromCtx retrieves the localizer from context.
func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	// Fallback: Arabic is the product language.
	return i18n.NewLocalizer(bundle, "ar")
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(localizerFromCtx(ctx), msgID, nil, nil)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(localizerFromCtx(ctx), msgID, data, nil)
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(localizerFromCtx(ctx), msgID, map[string]any{"Count": count}, count)
}

// Translator returns a function translating message IDs into one fixed language.
// The report engine uses it so that its labels do not depend on a request.
func Translator(lang string) func(msgID string, data map[string]any) string {
	loc := NewLocalizer(lang)
	return func(msgID string, data map[string]any) string {
		return localize(loc, msgID, data, nil)
	}
}

func localize(loc *i18n.Localizer, msgID string, data map[string]any, count any) string {
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
		PluralCount:  count,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Lexicon pairs the plain (non-template, non-plural) messages of two locales,
// mapping the text in `from` to the text in `to`.
func Lexicon(from, to string) (map[string]string, error) {
	src, err := readLocale(from)
	if err != nil {
		return nil, err
	}
	dst, err := readLocale(to)
	if err != nil {
		return nil, err
	}
	lex := make(map[string]string, len(src))
	for id, text := range src {
		target, ok := dst[id]
		if !ok || text == "" || strings.Contains(text, "{{") {
			continue
		}
		lex[text] = target
	}
	return lex, nil
}

func readLocale(lang string) (map[string]string, error) {
	data, err := localeFS.ReadFile("locales/" + lang + ".json")
	if err != nil {
		return nil, fmt.Errorf("read locale %s: %w", lang, err)
	}
	var raw map[string]any
	if err := jsonUnmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", lang, err)
	}
	out := make(map[string]string, len(raw))
	for id, v := range raw {
		if s, ok := v.(string); ok {
			out[id] = s
		}
	}
	return out, nil
}
