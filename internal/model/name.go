package model

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidName is returned for gem names outside the identifier grammar.
var ErrInvalidName = errors.New("gem names are 1-32 characters of a-z 0-9 _ - and must start with a letter or digit")

var nameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// ValidateName normalizes and validates a gem identifier. Every engine and
// store operation goes through here before lookup or storage, so malformed
// or case-duplicate keys cannot exist.
func ValidateName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !nameRE.MatchString(n) {
		return "", ErrInvalidName
	}
	return n, nil
}
