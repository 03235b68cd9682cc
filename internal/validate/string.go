// Package validate checks caller-supplied identifiers before they reach
// the ranking store or a storage key.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// MaxCandidateIDLength bounds candidate ids, which become store keys.
const MaxCandidateIDLength = 128

var (
	candidateIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)
	objectKeyPattern   = regexp.MustCompile(`^[A-Za-z0-9_.\-/]+$`)
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not bytes.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// CandidateID validates the id a caller attaches to a ranking candidate:
// - 1-128 characters
// - Letters, numbers, underscore, period, colon and dash only
//
// Ids such as "node:123" or "way-42" pass unchanged.
func CandidateID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxCandidateIDLength,
		AllowedPattern: candidateIDPattern,
	})
}

// ObjectKey validates an export object key. Empty keys are allowed and
// mean "generate one". Keys may contain slashes but no empty, "." or ".."
// segments and must not start with a slash.
func ObjectKey(key string) (string, error) {
	key, err := String(key, StringConstraints{
		MaxLength:      1024,
		AllowedPattern: objectKeyPattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
	if err != nil || key == "" {
		return key, err
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: bad path segment %q", ErrInvalidCharacters, seg)
		}
	}
	return key, nil
}
