// Package detector guesses the language of an answer so that prompts can be
// built in the same language.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Supported lists the languages prompts exist for. Restricting the detector
// to them keeps it small and avoids near-miss guesses.
var Supported = []lingua.Language{lingua.Korean, lingua.English}

// Detector wraps a lingua detector. Building one is expensive; reuse it.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(Supported...).
		WithPreloadedLanguageModels().
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the ISO 639-1 code ("ko", "en") of text.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}
