package api

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/krishi/internal/translate"
)

const translateSystemPrompt = `You translate short agricultural advisory messages for Indian farmers.
Keep crop names, scheme names, numbers and units exact.
Reply with only a JSON object: {"text": "<translation>", "confidence": <0..1>}.`

const detectSystemPrompt = `Identify the language of the user's message.
Reply with only a JSON object: {"language": "<ISO 639-1 code>"}.`

// Translator implements translate.Translator with a language model. Approved
// glossary terms are passed to the model so crop and scheme names map the
// same way the glossary translator maps them.
type Translator struct {
	llm      Completer
	glossary translate.Glossary
}

// NewTranslator creates an LLM translator. glossary may be nil.
func NewTranslator(llm Completer, glossary translate.Glossary) *Translator {
	return &Translator{llm: llm, glossary: glossary}
}

// DetectLanguage implements translate.Translator.
func (t *Translator) DetectLanguage(ctx context.Context, text string) (string, error) {
	reply, err := t.llm.Complete(ctx, detectSystemPrompt, text)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	obj, err := jsonObject(reply)
	if err != nil {
		return "", fmt.Errorf("%w: %v", translate.ErrDetectionFailed, err)
	}
	code := gjson.Get(obj, "language").String()
	if code == "" {
		return "", translate.ErrDetectionFailed
	}
	lang, err := translate.Normalize(code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", translate.ErrDetectionFailed, err)
	}
	return lang, nil
}

// ToEnglish implements translate.Translator.
func (t *Translator) ToEnglish(ctx context.Context, text, sourceLang string) (string, float64, error) {
	return t.translate(ctx, text, sourceLang, translate.English)
}

// FromEnglish implements translate.Translator.
func (t *Translator) FromEnglish(ctx context.Context, text, targetLang string) (string, float64, error) {
	return t.translate(ctx, text, translate.English, targetLang)
}

func (t *Translator) translate(ctx context.Context, text, from, to string) (string, float64, error) {
	from, err := translate.Normalize(from)
	if err != nil {
		return "", 0, err
	}
	to, err = translate.Normalize(to)
	if err != nil {
		return "", 0, err
	}
	if from == to {
		return text, 1, nil
	}

	prompt := fmt.Sprintf("Translate from %s to %s.\n%s\nMessage:\n%s", from, to, t.termHints(from, to), text)
	reply, err := t.llm.Complete(ctx, translateSystemPrompt, prompt)
	if err != nil {
		return "", 0, fmt.Errorf("translate %s->%s: %w", from, to, err)
	}
	obj, err := jsonObject(reply)
	if err != nil {
		return "", 0, fmt.Errorf("translate %s->%s: %w", from, to, err)
	}
	out := gjson.Get(obj, "text").String()
	if out == "" {
		return "", 0, fmt.Errorf("translate %s->%s: empty translation", from, to)
	}
	conf := gjson.Get(obj, "confidence").Float()
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return out, conf, nil
}

// termHints lists approved term pairs for the non-English side.
func (t *Translator) termHints(from, to string) string {
	lang := from
	if lang == translate.English {
		lang = to
	}
	terms := t.glossary[lang]
	if len(terms) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(terms))
	for en, local := range terms {
		pairs = append(pairs, en+" = "+local)
	}
	sort.Strings(pairs)
	return "Approved terms: " + strings.Join(pairs, "; ")
}

// jsonObject extracts the outermost JSON object from a model reply, which
// may wrap it in prose or a code fence.
func jsonObject(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	obj := reply[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("invalid JSON in reply")
	}
	return obj, nil
}
