// Package langdetect tags transcripts with the language they were spoken in.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	// Each model package registers itself with lingua; keep in sync with languages.
	_ "github.com/pemistahl/lingua-go/language-models/de"
	_ "github.com/pemistahl/lingua-go/language-models/en"
	_ "github.com/pemistahl/lingua-go/language-models/es"
	_ "github.com/pemistahl/lingua-go/language-models/fr"
	_ "github.com/pemistahl/lingua-go/language-models/ja"
	_ "github.com/pemistahl/lingua-go/language-models/ko"
	_ "github.com/pemistahl/lingua-go/language-models/ru"
	_ "github.com/pemistahl/lingua-go/language-models/zh"
)

var languages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Russian,
}

var (
	once     sync.Once
	detector lingua.LanguageDetector
)

// Models are large; build on first use.
func get() lingua.LanguageDetector {
	once.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build()
	})
	return detector
}

// Detect returns the ISO 639-1 code and English name of the language of
// text, or empty strings when it cannot be determined.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	lang, ok := get().DetectLanguageOf(text)
	if !ok {
		return "", ""
	}
	code = strings.ToLower(lang.IsoCode639_1().String())
	return code, Name(code)
}

// Name returns the English display name for an ISO 639 code.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(tag)
}
