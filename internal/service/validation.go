package service

import (
	"regexp"
	"unicode"

	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 64
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,20}$`)

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return errcode.ErrParams.WithMessage("username must be 4-20 letters, digits or underscores")
	}
	return nil
}

// validatePassword requires 8-64 characters with at least one letter and one digit.
func validatePassword(password string) error {
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return errcode.ErrParams.WithMessage("password must be %d-%d characters", minPasswordLen, maxPasswordLen)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return errcode.ErrParams.WithMessage("password must contain a letter and a digit")
	}
	return nil
}
