package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Username must be 3-30 characters after trimming.
func Username(v string) error {
	v = strings.TrimSpace(v)
	if len(v) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(v) > 30 {
		return fmt.Errorf("username cannot exceed 30 characters")
	}
	return nil
}

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func Password(v string) error {
	if len(v) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Gender restricts the profile gender field to the accepted values.
func Gender(v string) error {
	switch v {
	case "", "male", "female", "other":
		return nil
	}
	return fmt.Errorf("gender must be male, female or other")
}
