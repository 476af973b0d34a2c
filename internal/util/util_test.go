package util

import (
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{email: "t@gmail.com", want: true},
		{email: "@murmur.chat", want: false},
		{email: "1@gmail", want: true},
		{email: "not an email", want: false},
		{email: "Name <name@example.com>", want: false},
	}
	for _, test := range tests {
		if got := ValidateEmail(test.email); got != test.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", test.email, got, test.want)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{username: "alice", want: true},
		{username: "al", want: false},
		{username: "bob_the-builder", want: true},
		{username: "bob smith", want: false},
		{username: "émile", want: false},
		{username: "a123456789012345678901234567890123", want: false},
	}
	for _, test := range tests {
		if got := ValidateUsername(test.username); got != test.want {
			t.Errorf("ValidateUsername(%q) = %v, want %v", test.username, got, test.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if ValidatePassword("12345") {
		t.Error("five characters should be rejected")
	}
	if !ValidatePassword("123456") {
		t.Error("six characters should be accepted")
	}
}
