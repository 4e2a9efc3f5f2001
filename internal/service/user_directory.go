package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SoleStyle/solestyle/internal/domain/event"
	"github.com/SoleStyle/solestyle/internal/domain/user"
)

// UserDirectory owns user records keyed by email and the current-session pointer.
// The directory is cached in memory, loaded at Init, and persisted as a whole
// with a revision check on every mutation.
type UserDirectory struct {
	repo     user.Repository
	sessions user.SessionStore
	hasher   *user.PasswordHasher
	bus      event.Publisher
	logger   *slog.Logger
	policy   ConflictPolicy
	now      func() time.Time
	verify   func(password, hash string) (bool, error)

	mu    sync.Mutex // serializes directory reads and writes
	users map[string]user.User
	rev   uint64
}

// UserDirectoryOption configures a UserDirectory.
type UserDirectoryOption func(*UserDirectory)

// WithUserConflictPolicy sets the policy for stale directory writes.
func WithUserConflictPolicy(p ConflictPolicy) UserDirectoryOption {
	return func(d *UserDirectory) { d.policy = p }
}

// WithUserClock overrides the clock used for registration and login times.
func WithUserClock(now func() time.Time) UserDirectoryOption {
	return func(d *UserDirectory) { d.now = now }
}

// NewUserDirectory creates a UserDirectory. Call Init before use.
func NewUserDirectory(repo user.Repository, sessions user.SessionStore, hasher *user.PasswordHasher, bus event.Publisher, logger *slog.Logger, opts ...UserDirectoryOption) *UserDirectory {
	d := &UserDirectory{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		bus:      bus,
		logger:   logger,
		policy:   ConflictReject,
		now:      time.Now,
		users:    make(map[string]user.User),
	}
	d.verify = hasher.Verify
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init loads the directory. A corrupt directory is logged and treated as
// empty; the next write replaces it.
func (d *UserDirectory) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked(ctx)
}

// Reload re-reads the directory from storage.
func (d *UserDirectory) Reload(ctx context.Context) error {
	d.mu.Lock()
	err := d.loadLocked(ctx)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	d.publish(ctx)
	return nil
}

// loadLocked refreshes the cache from the repository. Caller must hold d.mu.
func (d *UserDirectory) loadLocked(ctx context.Context) error {
	users, rev, err := d.repo.Load(ctx)
	if errors.Is(err, user.ErrCorruptDirectory) {
		d.logger.Error("stored user directory is corrupt, starting empty", "error", err)
		d.users = make(map[string]user.User)
		d.rev = rev
		return nil
	}
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	d.users = make(map[string]user.User, len(users))
	for _, u := range users {
		d.users[u.Email] = u
	}
	d.rev = rev
	d.logger.Debug("user directory loaded", "users", len(users))
	return nil
}

// saveLocked persists next and replaces the cache. Caller must hold d.mu.
func (d *UserDirectory) saveLocked(ctx context.Context, next map[string]user.User) error {
	list := sortedUsers(next)
	rev, err := d.repo.Save(ctx, list, d.rev)
	if errors.Is(err, user.ErrStaleDirectory) {
		if d.policy != ConflictOverwrite {
			d.logger.Warn("user directory changed in storage, mutation rejected")
			return err
		}
		d.logger.Warn("user directory changed in storage, overwriting")
		rev, err = d.repo.Put(ctx, list)
	}
	if err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	d.users = next
	d.rev = rev
	return nil
}

func (d *UserDirectory) publish(ctx context.Context) {
	_ = d.bus.Publish(ctx, event.UsersUpdated)
}

// copyUsers returns a shallow copy of the cache map. Caller must hold d.mu.
func (d *UserDirectory) copyUsers() map[string]user.User {
	next := make(map[string]user.User, len(d.users))
	for k, v := range d.users {
		next[k] = v
	}
	return next
}

func sortedUsers(m map[string]user.User) []user.User {
	list := make([]user.User, 0, len(m))
	for _, u := range m {
		list = append(list, u.Clone())
	}
	user.SortByRegistrationDesc(list)
	return list
}

// RegisterUser creates an account and makes it the current session.
func (d *UserDirectory) RegisterUser(ctx context.Context, email, name, password, phone string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", user.ErrInvalidUser)
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	if _, exists := d.users[email]; exists {
		d.mu.Unlock()
		return nil, user.ErrUserExists
	}
	now := d.now().UTC()
	u := user.User{
		ID:               uuid.New().String(),
		Email:            email,
		Name:             name,
		Phone:            phone,
		RegistrationDate: now,
		LastLogin:        now,
		IsActive:         true,
		LoginCount:       1,
		Preferences:      user.DefaultPreferences(),
		OrderHistory:     []string{},
		WishlistItems:    []string{},
		PasswordHash:     hash,
	}
	if err := user.ValidateUser(u); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	next := d.copyUsers()
	next[email] = u
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	d.setSession(ctx, u)
	d.logger.Info("user registered", "id", u.ID, "email", email)
	d.publish(ctx)
	out := u.Clone()
	return &out, nil
}

// LoginUser verifies password for email. An unknown email yields
// user.ErrNewUser and never creates an account.
func (d *UserDirectory) LoginUser(ctx context.Context, email, password string) (*user.User, error) {
	email = user.NormalizeEmail(email)

	d.mu.Lock()
	u, ok := d.users[email]
	d.mu.Unlock()
	if !ok {
		return nil, user.ErrNewUser
	}
	// Verification is slow by construction; it runs without the lock.
	hash := u.PasswordHash
	match, err := d.verify(password, hash)
	if err != nil {
		d.logger.Warn("stored password hash unusable", "email", email, "error", err)
	}
	if !match {
		d.logger.Info("login rejected", "email", email)
		return nil, user.ErrInvalidCredentials
	}

	d.mu.Lock()
	u, ok = d.users[email]
	switch {
	case !ok:
		d.mu.Unlock()
		return nil, user.ErrNewUser
	case u.PasswordHash != hash:
		// The password changed while it was being verified.
		d.mu.Unlock()
		return nil, user.ErrInvalidCredentials
	}
	u = u.Clone()
	u.LoginCount++
	u.LastLogin = d.now().UTC()
	u.IsActive = true
	next := d.copyUsers()
	next[email] = u
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	d.setSession(ctx, u)
	d.logger.Info("user logged in", "id", u.ID, "email", email, "login_count", u.LoginCount)
	d.publish(ctx)
	out := u.Clone()
	return &out, nil
}

// SetPassword replaces the password hash of email. Used by admins to enable
// login for records imported without credentials.
func (d *UserDirectory) SetPassword(ctx context.Context, email, password string) error {
	email = user.NormalizeEmail(email)
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	d.mu.Lock()
	u, ok := d.users[email]
	if !ok {
		d.mu.Unlock()
		return user.ErrUserNotFound
	}
	u = u.Clone()
	u.PasswordHash = hash
	next := d.copyUsers()
	next[email] = u
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	d.logger.Info("user password set", "email", email)
	d.publish(ctx)
	return nil
}

// UpdateUser merges patch into the record for email. The session copy is
// refreshed only when the session belongs to the same email.
func (d *UserDirectory) UpdateUser(ctx context.Context, email string, patch user.Patch) (*user.User, error) {
	email = user.NormalizeEmail(email)
	d.mu.Lock()
	u, ok := d.users[email]
	if !ok {
		d.mu.Unlock()
		return nil, user.ErrUserNotFound
	}
	updated := patch.Apply(u)
	if err := user.ValidateUser(updated); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	next := d.copyUsers()
	next[email] = updated
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	if current, err := d.sessions.Get(ctx); err == nil && current != nil && current.Email == email {
		d.setSession(ctx, updated)
	}
	d.logger.Info("user updated", "email", email)
	d.publish(ctx)
	out := updated.Clone()
	return &out, nil
}

// UpdateStylePreference sets the style preference of email.
func (d *UserDirectory) UpdateStylePreference(ctx context.Context, email, style string) (*user.User, error) {
	return d.UpdateUser(ctx, email, user.Patch{StylePreference: &style})
}

// GetAllUsers returns every user, newest registration first.
func (d *UserDirectory) GetAllUsers(_ context.Context) []user.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedUsers(d.users)
}

// GetUserByEmail returns the record for email.
func (d *UserDirectory) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := u.Clone()
	return &out, nil
}

// GetUserByID scans for the record with id.
func (d *UserDirectory) GetUserByID(_ context.Context, id string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == id {
			out := u.Clone()
			return &out, nil
		}
	}
	return nil, user.ErrUserNotFound
}

// DeleteUser removes email and reports whether a record was removed.
func (d *UserDirectory) DeleteUser(ctx context.Context, email string) (bool, error) {
	email = user.NormalizeEmail(email)
	d.mu.Lock()
	if _, ok := d.users[email]; !ok {
		d.mu.Unlock()
		return false, nil
	}
	next := d.copyUsers()
	delete(next, email)
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return false, err
	}
	d.mu.Unlock()

	d.logger.Info("user deleted", "email", email)
	d.publish(ctx)
	return true, nil
}

// GetUserStats aggregates the directory.
func (d *UserDirectory) GetUserStats(_ context.Context) user.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return user.ComputeStats(sortedUsers(d.users), d.now())
}

// SearchUsers matches query against name and email case-insensitively and
// against the phone number literally. Results are ordered like GetAllUsers.
func (d *UserDirectory) SearchUsers(ctx context.Context, query string) []user.User {
	all := d.GetAllUsers(ctx)
	out := make([]user.User, 0)
	for _, u := range all {
		if u.Matches(query) {
			out = append(out, u)
		}
	}
	return out
}

// ExportUserData returns the whole directory.
func (d *UserDirectory) ExportUserData(ctx context.Context) user.Export {
	return user.Export{
		Users:      d.GetAllUsers(ctx),
		ExportDate: d.now().UTC(),
		Version:    user.ExportVersion,
	}
}

// ImportUserData replaces the directory. Every record is validated and the
// import is rejected as a whole if any record fails.
func (d *UserDirectory) ImportUserData(ctx context.Context, data user.Export) error {
	users := make([]user.User, len(data.Users))
	for i, u := range data.Users {
		c := u.Clone()
		c.Email = user.NormalizeEmail(c.Email)
		if c.Preferences == (user.Preferences{}) {
			c.Preferences = user.DefaultPreferences()
		}
		users[i] = c
	}
	if err := user.ValidateDirectory(users); err != nil {
		return fmt.Errorf("import rejected: %w", err)
	}
	next := make(map[string]user.User, len(users))
	for _, u := range users {
		next[u.Email] = u
	}

	d.mu.Lock()
	if err := d.saveLocked(ctx, next); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	d.logger.Info("users imported", "users", len(next))
	d.publish(ctx)
	return nil
}

// GetCurrentUser returns the session user, or nil when nobody is logged in.
// A corrupt session blob is logged and treated as absent.
func (d *UserDirectory) GetCurrentUser(ctx context.Context) (*user.User, error) {
	u, err := d.sessions.Get(ctx)
	if err != nil {
		d.logger.Error("session unreadable, treating as logged out", "error", err)
		return nil, nil
	}
	return u, nil
}

// LogoutUser clears the session pointer.
func (d *UserDirectory) LogoutUser(ctx context.Context) error {
	if err := d.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	d.logger.Info("user logged out")
	return nil
}

// ClearAllUsers removes the directory and the session from storage.
func (d *UserDirectory) ClearAllUsers(ctx context.Context) error {
	d.mu.Lock()
	if err := d.repo.Clear(ctx); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("clear users: %w", err)
	}
	d.users = make(map[string]user.User)
	d.rev = 0
	d.mu.Unlock()

	if err := d.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	d.logger.Warn("all users cleared")
	d.publish(ctx)
	return nil
}

// UserCount returns the number of users.
func (d *UserDirectory) UserCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// setSession stores u, without its password hash, as the current session.
// A failure is logged: the directory write already succeeded.
func (d *UserDirectory) setSession(ctx context.Context, u user.User) {
	if err := d.sessions.Set(ctx, u.Public()); err != nil {
		d.logger.Error("failed to store session", "email", u.Email, "error", err)
	}
}
