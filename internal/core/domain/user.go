package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// UsernameField names the field used as the natural key for login.
const UsernameField = "email"

const (
	MaxEmailLength = 255
	MaxNameLength  = 30
)

// unusablePasswordPrefix marks a hash that can never match any password.
const unusablePasswordPrefix = "!"

var (
	ErrEmailRequired      = errors.New("the given email must be set")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("name must be at most 30 characters")
	ErrPasswordRequired   = errors.New("password is required")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrForbidden          = errors.New("access forbidden")
	ErrConcurrentUpdate   = errors.New("user was modified concurrently")
)

// User models an account that logs in with its email address.
// Email and password are required. Other fields are optional.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	Groups       []string  `json:"groups"`
	Permissions  []string  `json:"permissions"`
	LastLogin    time.Time `json:"last_login"`
	DateJoined   time.Time `json:"date_joined"`

	// Version is bumped by every stored update. An update carrying a stale
	// version fails with ErrConcurrentUpdate.
	Version int64 `json:"-"`
}

// NormalizeEmail trims surrounding whitespace and lowercases the domain part
// of an email address. The local part keeps its case; an address without '@'
// is only trimmed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// ValidName reports whether a first or last name fits MaxNameLength
// characters.
func ValidName(name string) bool {
	return utf8.RuneCountInString(name) <= MaxNameLength
}

// Username returns the natural key of the account.
func (u *User) Username() string {
	return u.Email
}

// FullName returns the first name plus the last name, with a space in between.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ShortName returns the short name for the user.
func (u *User) ShortName() string {
	return u.FirstName
}

// AbsoluteURL returns the canonical path of the account resource.
func (u *User) AbsoluteURL() string {
	return "/users/" + url.PathEscape(u.ID) + "/"
}

// HasUsablePassword reports whether the stored hash can ever match a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, unusablePasswordPrefix)
}

// UnusablePassword builds a hash value that HasUsablePassword rejects.
func UnusablePassword(suffix string) string {
	return unusablePasswordPrefix + suffix
}

// InGroup reports whether the user is a member of the named group.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}
