package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	playground "github.com/go-playground/validator/v10"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidName     = errors.New("name must be between 1 and 100 characters")
	ErrInvalidPassword = errors.New("password must be at least 8 characters with upper case, lower case and a digit")
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var structs = playground.New(playground.WithRequiredStructEnabled())

func ValidateEmail(email string) error {
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 1 || n > 100 {
		return ErrInvalidName
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrInvalidPassword
	}
	return nil
}

// Struct checks the validate tags of v and flattens any failures into a
// single readable error naming the offending fields.
func Struct(v any) error {
	err := structs.Struct(v)
	if err == nil {
		return nil
	}
	var fields playground.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", f.Field(), f.Tag(), f.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
