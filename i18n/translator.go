package i18n

import (
	"sort"
	"strings"
	"sync"
)

// Translator retrieves localized message templates for error codes.
// data provides optional values substituted into {key} placeholders.
type Translator interface {
	Message(code string, data map[string]string) string
}

// Codes lists the error codes the built-in dictionary knows about.
var Codes = []string{"required", "type_error", "none_not_allowed", "invalid_choice", "not_found"}

var dictionaries = map[string]map[string]string{
	"en": {
		"required":         "This is a required field",
		"type_error":       "Invalid type",
		"none_not_allowed": "This field cannot be null",
		"invalid_choice":   "invalid choice",
		"not_found":        "{name} not found",
	},
	"ja": {
		"required":         "必須フィールドです",
		"type_error":       "型が不正です",
		"none_not_allowed": "null は許可されていません",
		"invalid_choice":   "選択肢に含まれていません",
		"not_found":        "{name} が見つかりません",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	if msg, ok := dictionaries[t.lang][code]; ok {
		return Format(msg, data)
	}
	return code
}

// Template returns the raw template for code in lang without formatting.
func Template(lang, code string) (string, bool) {
	msg, ok := dictionaries[lang][code]
	return msg, ok
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
	currentLang                  = "en"
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	currentLang = lang
	mu.Unlock()
}

// Language reports the language of the built-in Translator in effect.
func Language() string {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	mu.Lock()
	defer mu.Unlock()
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		currentLang = "en"
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}

// Defaults returns the unformatted message templates of the current
// Translator for every known code.
func Defaults() map[string]string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	out := make(map[string]string, len(Codes))
	for _, c := range Codes {
		if dt, ok := tr.(dictTranslator); ok {
			out[c], _ = Template(dt.lang, c)
			continue
		}
		out[c] = tr.Message(c, nil)
	}
	return out
}

// Format replaces {key} placeholders in tmpl with values from data.
// Unknown placeholders are left untouched.
func Format(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
