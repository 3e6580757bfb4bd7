package course

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

var (
	languageTag  = "language"
	languageText = "language must be one of python, java or cpp"

	courseCodeTag   = "coursecode"
	courseCodeText  = "invalid course code (expected e.g. COSC 301)"
	courseCodeRegex = regexp.MustCompile(`^[A-Za-z]{3,4} ?\d{3}[A-Za-z]?$`)
)

// InitValidators registers the course validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(languageTag, languageValidation)
	core.RegisterCustomTranslation(validate, translator, languageTag, languageText)
	_ = validate.RegisterValidation(courseCodeTag, courseCodeValidation)
	core.RegisterCustomTranslation(validate, translator, courseCodeTag, courseCodeText)
}

func languageValidation(fl validator.FieldLevel) bool {
	return IsLanguage(fl.Field().String())
}

func courseCodeValidation(fl validator.FieldLevel) bool {
	return courseCodeRegex.MatchString(fl.Field().String())
}

func IsLanguage(lang string) bool {
	for _, l := range AllLanguages {
		if lang == l {
			return true
		}
	}
	return false
}
