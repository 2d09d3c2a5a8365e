package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidModel   = errors.New("invalid model name")
)

const (
	MaxMessageLength   = 10000
	MaxModelNameLength = 100
)

// ValidateMessage rejects blank or oversized input and any control
// characters other than newline, carriage return and tab.
func ValidateMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidMessage, MaxMessageLength)
	}
	for _, r := range msg {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("%w: message contains control characters", ErrInvalidMessage)
		}
	}
	return nil
}

func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidModel)
	}
	if len(name) > MaxModelNameLength {
		return fmt.Errorf("%w: model name exceeds %d characters", ErrInvalidModel, MaxModelNameLength)
	}
	for _, r := range name {
		if !isModelRune(r) {
			return fmt.Errorf("%w: model name contains invalid character %q", ErrInvalidModel, r)
		}
	}
	first, last := rune(name[0]), rune(name[len(name)-1])
	if !isAlnum(first) || !isAlnum(last) {
		return fmt.Errorf("%w: model name must start and end with a letter or digit", ErrInvalidModel)
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isModelRune(r rune) bool {
	return isAlnum(r) || r == ':' || r == '.' || r == '_' || r == '-'
}
