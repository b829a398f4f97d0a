package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"Alice@Example.COM":      "Alice@example.com",
		"bob@example.com":        "bob@example.com",
		"weird@name@EXAMPLE.org": "weird@name@example.org",
		"no-at-sign":             "no-at-sign",
		" bob@Example.com\n":     "bob@example.com",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeEmail(in), "input %q", in)
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName(""))
	assert.True(t, ValidName(strings.Repeat("a", MaxNameLength)))
	assert.False(t, ValidName(strings.Repeat("a", MaxNameLength+1)))

	// Multibyte names are measured in characters.
	assert.True(t, ValidName(strings.Repeat("é", 20)))
	assert.True(t, ValidName(strings.Repeat("名", MaxNameLength)))
	assert.False(t, ValidName(strings.Repeat("名", MaxNameLength+1)))
}

func TestUser_Names(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.FullName())
	assert.Equal(t, "Ada", u.ShortName())

	u = &User{LastName: "Lovelace"}
	assert.Equal(t, "Lovelace", u.FullName())
	assert.Equal(t, "", u.ShortName())

	u = &User{}
	assert.Equal(t, "", u.FullName())
}

func TestUser_AbsoluteURL(t *testing.T) {
	u := &User{ID: "4f1c"}
	assert.Equal(t, "/users/4f1c/", u.AbsoluteURL())

	u = &User{ID: "a b/c"}
	assert.Equal(t, "/users/a%20b%2Fc/", u.AbsoluteURL())
}

func TestUser_Username(t *testing.T) {
	u := &User{Email: "ada@example.com"}
	assert.Equal(t, "ada@example.com", u.Username())
	assert.Equal(t, "email", UsernameField)
}

func TestUser_HasUsablePassword(t *testing.T) {
	assert.False(t, (&User{}).HasUsablePassword())
	assert.False(t, (&User{PasswordHash: UnusablePassword("xyz")}).HasUsablePassword())
	assert.True(t, (&User{PasswordHash: "$2a$10$abc"}).HasUsablePassword())
}

func TestUser_InGroup(t *testing.T) {
	u := &User{Groups: []string{"editors"}}
	assert.True(t, u.InGroup("editors"))
	assert.False(t, u.InGroup("admins"))
}
