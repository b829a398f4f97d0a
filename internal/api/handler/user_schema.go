package handler

import (
	"time"

	"github.com/emailauth/emailauth/internal/core/domain"
)

// ── Requests ──────────────────────────────────────────────────────────────────

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email,max=255"`
	Password  string `json:"password"   validate:"required"`
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name"  validate:"max=30"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type addToGroupRequest struct {
	Group string `json:"group" validate:"required"`
}

type grantPermissionRequest struct {
	Permission string `json:"permission" validate:"required"`
}

type saveGroupRequest struct {
	Permissions []string `json:"permissions"`
}

type emailUserRequest struct {
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
	From    string `json:"from"    validate:"omitempty,email"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// userResponse is the public representation of an account.
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	ShortName   string    `json:"short_name"`
	URL         string    `json:"url"`
	IsStaff     bool      `json:"is_staff"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	Groups      []string  `json:"groups"`
	Permissions []string  `json:"permissions"`
	LastLogin   time.Time `json:"last_login"`
	DateJoined  time.Time `json:"date_joined"`
}

func toUserResponse(u *domain.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		ShortName:   u.ShortName(),
		URL:         u.AbsoluteURL(),
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		Groups:      u.Groups,
		Permissions: u.Permissions,
		LastLogin:   u.LastLogin,
		DateJoined:  u.DateJoined,
	}
}

type authResponse struct {
	Token string        `json:"token,omitempty"`
	User  *userResponse `json:"user,omitempty"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

type modulePermsResponse struct {
	AppLabel string `json:"app_label"`
	Allowed  bool   `json:"allowed"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
