package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrInvalidGroup      = errors.New("group name is required")
	ErrInvalidPermission = errors.New("permission must have the form <app_label>.<codename>")
)

// Group bundles permissions that are granted to every member.
type Group struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ValidPermission reports whether perm has the form "<app_label>.<codename>".
func ValidPermission(perm string) bool {
	label, codename, ok := strings.Cut(perm, ".")
	return ok && label != "" && codename != ""
}

// AllPermissions returns the sorted union of the user's own permissions and
// the permissions inherited through groupPerms. Inactive users have none.
func (u *User) AllPermissions(groupPerms []string) []string {
	if !u.IsActive {
		return []string{}
	}
	set := make(map[string]struct{}, len(u.Permissions)+len(groupPerms))
	for _, p := range u.Permissions {
		set[p] = struct{}{}
	}
	for _, p := range groupPerms {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPerm reports whether the user holds perm. Active superusers hold every
// permission; inactive users hold none.
func (u *User) HasPerm(perm string, groupPerms []string) bool {
	if !u.IsActive {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	for _, p := range groupPerms {
		if p == perm {
			return true
		}
	}
	return false
}

// HasPerms reports whether the user holds every permission in perms.
func (u *User) HasPerms(perms []string, groupPerms []string) bool {
	for _, p := range perms {
		if !u.HasPerm(p, groupPerms) {
			return false
		}
	}
	return true
}

// HasModulePerms reports whether the user holds any permission in appLabel.
func (u *User) HasModulePerms(appLabel string, groupPerms []string) bool {
	if !u.IsActive {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	prefix := appLabel + "."
	for _, p := range u.AllPermissions(groupPerms) {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
