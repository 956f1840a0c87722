// Package validation checks user input before it reaches the services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"familydose/internal/models"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	idRegex    = regexp.MustCompile(`^[a-zA-Z0-9._\-]{3,64}$`)
)

// MaxAge bounds the age accepted for a household member
const MaxAge = 150

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateID checks a login id
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	if !idRegex.MatchString(id) {
		return ValidationError{Field: field, Message: "must be 3-64 letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// MaxItemIDLength bounds a catalog item id
const MaxItemIDLength = 64

// ValidateItemID checks a catalog item id. Any printable text is accepted
// except '/', since ids are used as URL path segments.
func ValidateItemID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	if utf8.RuneCountInString(id) > MaxItemIDLength {
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxItemIDLength)}
	}
	for _, r := range id {
		if r == '/' || unicode.IsControl(r) {
			return ValidationError{Field: field, Message: "must not contain '/' or control characters"}
		}
	}
	return nil
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if len([]rune(name)) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateAge checks an optional age
func ValidateAge(age *int) error {
	if age == nil {
		return nil
	}
	if *age < 0 || *age > MaxAge {
		return ValidationError{Field: "age", Message: fmt.Sprintf("age must be between 0 and %d", MaxAge)}
	}
	return nil
}

// ValidateDate checks an optional YYYY-MM-DD date
func ValidateDate(field, date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return ValidationError{Field: field, Message: "date must be YYYY-MM-DD"}
	}
	return nil
}

// ValidateDateRange checks that end is not before start when both are set
func ValidateDateRange(start, end string) error {
	if err := ValidateDate("start_date", start); err != nil {
		return err
	}
	if err := ValidateDate("end_date", end); err != nil {
		return err
	}
	// layout sorts lexically
	if start != "" && end != "" && end < start {
		return ValidationError{Field: "end_date", Message: "end date is before start date"}
	}
	return nil
}
