package util

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the shortest password accepted on sign up.
	MinPasswordLength = 6
)

var usernameMatcher = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// ValidateEmail validates the email.
func ValidateEmail(email string) bool {
	if _, err := mail.ParseAddress(email); err != nil {
		return false
	}
	return !strings.ContainsAny(email, "<> ")
}

// ValidateUsername reports whether username is 3-32 letters, digits, '_' or '-'.
func ValidateUsername(username string) bool {
	return usernameMatcher.MatchString(username)
}

// ValidatePassword reports whether password is long enough.
func ValidatePassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// LooksLikeEmail is used to tell an email identifier from a username on sign in.
func LooksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
