package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxNameLength   = 20
	maxAvatarLength = 32
	maxCardLength   = 300
	maxPackIDLength = 50
	maxUserIDLength = 64
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("name", func(fl validator.FieldLevel) bool {
			_, err := validateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("avatar", func(fl validator.FieldLevel) bool {
			_, err := validateAvatar(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("card", func(fl validator.FieldLevel) bool {
			_, err := validateCard(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("packid", func(fl validator.FieldLevel) bool {
			_, err := validatePackID(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("signaltype", func(fl validator.FieldLevel) bool {
			return isSignalType(fl.Field().String())
		})
		_ = engine.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
			return isUserID(fl.Field().String())
		})
	})
}

func validateName(name string) (string, error) {
	return validateText("name", name, maxNameLength)
}

func validateAvatar(avatar string) (string, error) {
	trimmed := strings.TrimSpace(avatar)
	if utf8.RuneCountInString(trimmed) > maxAvatarLength {
		return "", fmt.Errorf("avatar must be %d characters or fewer", maxAvatarLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", errors.New("avatar contains unsupported characters")
		}
	}
	return trimmed, nil
}

// validateCard accepts any printable text; cards are free-form and may carry
// punctuation or non-ASCII letters.
func validateCard(text string) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", errors.New("card is required")
	}
	if utf8.RuneCountInString(trimmed) > maxCardLength {
		return "", fmt.Errorf("card must be %d characters or fewer", maxCardLength)
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", errors.New("card contains unsupported characters")
		}
	}
	return trimmed, nil
}

func validatePackID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", errors.New("pack id is required")
	}
	if len(trimmed) > maxPackIDLength {
		return "", fmt.Errorf("pack id must be %d characters or fewer", maxPackIDLength)
	}
	for _, r := range trimmed {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '-' || r == '_' {
			continue
		}
		return "", errors.New("pack id may only contain lowercase letters, digits, dashes and underscores")
	}
	return trimmed, nil
}

func isUserID(value string) bool {
	if value == "" || len(value) > maxUserIDLength {
		return false
	}
	for _, r := range value {
		if r > 127 || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func isRoomCode(value string) bool {
	if len(value) != roomCodeLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		if !strings.ContainsRune(roomCodeAlphabet, rune(value[i])) {
			return false
		}
	}
	return true
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '"', '.', ',', '!', '?', ':', ';', '&', '(', ')', '/':
			continue
		default:
			return false
		}
	}
	return true
}
