package validators

import (
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

func HasUpper(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsUpper)
}

func HasLower(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsLower)
}

func HasDigit(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), unicode.IsDigit)
}

func HasSpecial(fl validator.FieldLevel) bool {
	return containsRune(fl.Field().String(), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func NoWhiteSpaces(fl validator.FieldLevel) bool {
	return !containsRune(fl.Field().String(), unicode.IsSpace)
}

// IsIso8601 accepts RFC3339 timestamps ("2025-08-30T15:00:00Z"), which is
// the subset of ISO 8601 the API speaks.
func IsIso8601(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.RFC3339, fl.Field().String())
	return err == nil
}

func containsRune(s string, match func(rune) bool) bool {
	for _, r := range s {
		if match(r) {
			return true
		}
	}
	return false
}
