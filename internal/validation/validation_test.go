package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPhone(t *testing.T) {
	cases := []struct {
		phone   string
		country string
		valid   bool
	}{
		{"9876543210", "India", true},
		{"+91 98765-43210", "India", false},
		{"98765 43210", "India", true},
		{"1234567890", "India", false},
		{"987654321", "India", false},
		{"0312345678", "Japan", true},
		{"09012345678", "Japan", true},
		{"3312345678", "Japan", false},
		{"031234567", "Japan", false},
		{"123456", "Other", false},
		{"1234567", "Other", true},
		{"123456789012345", "Other", true},
		{"1234567890123456", "Other", false},
		{"(555) 123-4567", "Other", true},
		{"1234567", "", true},
		{"1234567890", "india", false},
		{"9876543210", " india ", true},
		{"0312345678", "JAPAN", true},
		{"(555) 123-4567", "Atlantis", false},
	}

	for _, tt := range cases {
		if got := IsValidPhone(tt.phone, tt.country); got != tt.valid {
			t.Fatalf("IsValidPhone(%q, %q)=%v, want %v", tt.phone, tt.country, got, tt.valid)
		}
	}
}

func TestContact(t *testing.T) {
	require.NoError(t, Contact("Asha", "9876543210", "India", "General"))

	err := Contact(" ", "9876543210", "India", "General")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "name", err.(*Error).Field)

	err = Contact("Asha", "", "India", "General")
	require.Error(t, err)
	assert.Equal(t, "phone", err.(*Error).Field)

	err = Contact("Asha", "1234567890", "India", "General")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid phone for India")

	err = Contact("Asha", "1234567", "", "General")
	require.NoError(t, err)

	err = Contact("Asha", "1234567890", "india", "General")
	require.Error(t, err)
	assert.Equal(t, "phone", err.(*Error).Field)
	assert.Contains(t, err.Error(), "invalid phone for India")

	err = Contact("Asha", "1234567890", "France", "General")
	require.Error(t, err)
	assert.Equal(t, "country", err.(*Error).Field)
	assert.Contains(t, err.Error(), `unknown country "France"`)

	err = Contact("Asha", "1234567", "Other", "")
	require.Error(t, err)
	assert.Equal(t, "dept", err.(*Error).Field)

	err = Contact("Asha", "1234567", "Other", "Dermatology")
	require.Error(t, err)
	assert.Equal(t, "dept", err.(*Error).Field)
}

func TestCountry(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "Other"},
		{"  ", "Other"},
		{"India", "India"},
		{"india", "India"},
		{" JAPAN ", "Japan"},
		{"other", "Other"},
	}
	for _, tt := range cases {
		got, err := Country(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Country("Atlantis")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "country", err.(*Error).Field)
}
