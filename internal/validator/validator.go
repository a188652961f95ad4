package validator

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

var (
	ErrInvalidUsername = errors.New("username must be 4-20 letters, digits or underscores")
	ErrInvalidPassword = errors.New("password must be 6-20 characters")
	ErrRemarkTooLong   = errors.New("remark must be at most 100 characters")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{4,20}$`)

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 || len(password) > 20 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateRemark(remark string) error {
	if utf8.RuneCountInString(remark) > 100 {
		return ErrRemarkTooLong
	}
	return nil
}
