// Package validation holds the input rules shared by check-in and booking.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cliniq/internal/models"
)

// Error reports a rejected input field with a human-readable reason.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Errorf(field, format string, args ...interface{}) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

var (
	nonDigit     = regexp.MustCompile(`[^\d]`)
	indiaPattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	japanPattern = regexp.MustCompile(`^0\d{9,10}$`)
)

// NormalizePhone strips everything except digits.
func NormalizePhone(phone string) string {
	return nonDigit.ReplaceAllString(strings.TrimSpace(phone), "")
}

// Country resolves a declared country to one of models.Countries, ignoring
// case and surrounding space. An empty value means models.CountryOther.
func Country(country string) (string, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return models.CountryOther, nil
	}
	for _, known := range models.Countries {
		if strings.EqualFold(known, country) {
			return known, nil
		}
	}
	return "", Errorf("country", "unknown country %q", country)
}

// IsValidPhone applies the per-country rules to the digits of phone.
// Unknown countries never validate.
func IsValidPhone(phone, country string) bool {
	country, err := Country(country)
	if err != nil {
		return false
	}
	cleaned := NormalizePhone(phone)
	switch country {
	case models.CountryIndia:
		return indiaPattern.MatchString(cleaned)
	case models.CountryJapan:
		return japanPattern.MatchString(cleaned)
	default:
		return len(cleaned) >= 7 && len(cleaned) <= 15
	}
}

func PhoneHint(country string) string {
	country, _ = Country(country)
	switch country {
	case models.CountryIndia:
		return "10 digits, start 6-9"
	case models.CountryJapan:
		return "10-11 digits, start 0"
	default:
		return "7-15 digits"
	}
}

// Contact checks the fields every patient-facing form shares.
func Contact(name, phone, country, dept string) error {
	if strings.TrimSpace(name) == "" {
		return Errorf("name", "name is required")
	}
	if strings.TrimSpace(phone) == "" {
		return Errorf("phone", "phone is required")
	}
	country, err := Country(country)
	if err != nil {
		return err
	}
	if !IsValidPhone(phone, country) {
		return Errorf("phone", "invalid phone for %s (%s)", country, PhoneHint(country))
	}
	return Department(dept)
}

func Department(dept string) error {
	if strings.TrimSpace(dept) == "" {
		return Errorf("dept", "please select a department")
	}
	if !models.IsDepartment(dept) {
		return Errorf("dept", "unknown department %q", dept)
	}
	return nil
}
