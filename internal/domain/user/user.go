// Package user contains the user directory domain: user records keyed by
// email, the current-session pointer, and password verification.
package user

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Sentinel errors for user directory operations.
var (
	// ErrUserNotFound is returned when no user has the requested email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering an email that is already present.
	ErrUserExists = errors.New("user already exists")
	// ErrNewUser is returned by login for an unknown email. It is a control-flow
	// signal: clients redirect to registration.
	ErrNewUser = errors.New("new user")
	// ErrInvalidCredentials is returned when a password does not match, or the
	// record carries no password hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCorruptDirectory is returned when the persisted directory cannot be decoded or validated.
	ErrCorruptDirectory = errors.New("corrupt user directory")
	// ErrStaleDirectory is returned when another writer changed the persisted
	// directory since it was last read.
	ErrStaleDirectory = errors.New("user directory changed in storage, reload required")
	// ErrInvalidUser wraps schema violations of a user record.
	ErrInvalidUser = errors.New("invalid user")
)

// Theme is the UI theme preference.
type Theme string

// Known themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// ExportVersion tags exported user data.
const ExportVersion = "1.0"

// Preferences are per-user notification and display settings.
type Preferences struct {
	Newsletter    bool  `json:"newsletter"`
	Notifications bool  `json:"notifications"`
	Theme         Theme `json:"theme" validate:"omitempty,oneof=light dark auto"`
}

// DefaultPreferences returns the preferences given to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{Newsletter: true, Notifications: true, Theme: ThemeAuto}
}

// Address is an optional postal address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// User is a directory record. Email is the primary key.
type User struct {
	ID               string      `json:"id" validate:"required"`
	Email            string      `json:"email" validate:"required,email"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone,omitempty"`
	StylePreference  string      `json:"stylePreference,omitempty"`
	RegistrationDate time.Time   `json:"registrationDate"`
	LastLogin        time.Time   `json:"lastLogin"`
	IsActive         bool        `json:"isActive"`
	LoginCount       int         `json:"loginCount" validate:"gte=0"`
	Preferences      Preferences `json:"preferences"`
	Address          *Address    `json:"address,omitempty"`
	OrderHistory     []string    `json:"orderHistory"`
	WishlistItems    []string    `json:"wishlistItems"`
	// PasswordHash is an Argon2id PHC string. Empty for records imported
	// without credentials; such users cannot log in until a password is set.
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Clone returns a deep copy of u. Nil lists become empty lists.
func (u User) Clone() User {
	c := u
	c.OrderHistory = append([]string{}, u.OrderHistory...)
	c.WishlistItems = append([]string{}, u.WishlistItems...)
	if u.Address != nil {
		a := *u.Address
		c.Address = &a
	}
	return c
}

// Public returns a copy of u without the password hash, for API responses.
func (u User) Public() User {
	c := u.Clone()
	c.PasswordHash = ""
	return c
}

// Matches reports whether query is a case-insensitive substring of the name
// or email, or a literal substring of the phone number.
func (u User) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(u.Name), q) ||
		strings.Contains(strings.ToLower(u.Email), q) ||
		(u.Phone != "" && strings.Contains(u.Phone, query))
}

// Patch is a partial update of a user record. Email and id are not patchable.
type Patch struct {
	Name            *string      `json:"name,omitempty"`
	Phone           *string      `json:"phone,omitempty"`
	StylePreference *string      `json:"stylePreference,omitempty"`
	IsActive        *bool        `json:"isActive,omitempty"`
	Preferences     *Preferences `json:"preferences,omitempty"`
	Address         *Address     `json:"address,omitempty"`
	OrderHistory    *[]string    `json:"orderHistory,omitempty"`
	WishlistItems   *[]string    `json:"wishlistItems,omitempty"`
}

// Apply returns u with the non-nil patch fields merged in.
func (p Patch) Apply(u User) User {
	out := u.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.StylePreference != nil {
		out.StylePreference = *p.StylePreference
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	if p.Preferences != nil {
		out.Preferences = *p.Preferences
	}
	if p.Address != nil {
		a := *p.Address
		out.Address = &a
	}
	if p.OrderHistory != nil {
		out.OrderHistory = slices.Clone(*p.OrderHistory)
	}
	if p.WishlistItems != nil {
		out.WishlistItems = slices.Clone(*p.WishlistItems)
	}
	return out
}

// Stats are aggregate directory counts.
type Stats struct {
	TotalUsers        int     `json:"totalUsers"`
	ActiveUsers       int     `json:"activeUsers"`
	NewUsersThisMonth int     `json:"newUsersThisMonth"`
	NewUsersThisWeek  int     `json:"newUsersThisWeek"`
	UsersWithOrders   int     `json:"usersWithOrders"`
	AverageLoginCount float64 `json:"averageLoginCount"`
}

// ComputeStats aggregates users relative to now. "This month" and "this week"
// are the trailing 30 and 7 days.
func ComputeStats(users []User, now time.Time) Stats {
	var s Stats
	s.TotalUsers = len(users)
	monthAgo := now.AddDate(0, 0, -30)
	weekAgo := now.AddDate(0, 0, -7)
	totalLogins := 0
	for _, u := range users {
		if u.IsActive {
			s.ActiveUsers++
		}
		if u.RegistrationDate.After(monthAgo) {
			s.NewUsersThisMonth++
		}
		if u.RegistrationDate.After(weekAgo) {
			s.NewUsersThisWeek++
		}
		if len(u.OrderHistory) > 0 {
			s.UsersWithOrders++
		}
		totalLogins += u.LoginCount
	}
	if s.TotalUsers > 0 {
		s.AverageLoginCount = float64(totalLogins) / float64(s.TotalUsers)
	}
	return s
}

// SortByRegistrationDesc sorts users newest first. Ties keep email order so
// results are deterministic.
func SortByRegistrationDesc(users []User) {
	slices.SortStableFunc(users, func(a, b User) int {
		if c := b.RegistrationDate.Compare(a.RegistrationDate); c != 0 {
			return c
		}
		return strings.Compare(a.Email, b.Email)
	})
}

// Export is the full-directory export format.
type Export struct {
	Users      []User    `json:"users"`
	ExportDate time.Time `json:"exportDate"`
	Version    string    `json:"version"`
}

// NormalizeEmail is the directory key form of an email address.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
