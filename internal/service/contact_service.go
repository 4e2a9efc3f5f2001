package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SoleStyle/solestyle/internal/domain/contact"
	"github.com/SoleStyle/solestyle/internal/domain/event"
)

// ContactService stores contact form submissions, newest first.
type ContactService struct {
	repo     contact.Repository
	bus      event.Publisher
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	mu       sync.Mutex // serializes load-modify-save
}

// NewContactService creates a ContactService.
func NewContactService(repo contact.Repository, bus event.Publisher, logger *slog.Logger) *ContactService {
	return &ContactService{
		repo:     repo,
		bus:      bus,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// ValidationError reports which input fields are invalid.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

func (s *ContactService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return ve
}

// Submit stores a new unread message at the front of the list.
func (s *ContactService) Submit(ctx context.Context, in contact.Input) (*contact.Message, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	s.mu.Lock()
	msgs, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	msg := contact.Message{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
		Timestamp: s.now().UTC(),
	}
	msgs = append([]contact.Message{msg}, msgs...)
	if err := s.repo.Save(ctx, msgs); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("save contacts: %w", err)
	}
	s.mu.Unlock()

	s.logger.Info("contact message received", "id", msg.ID, "email", msg.Email)
	_ = s.bus.Publish(ctx, event.ContactsUpdated)
	return &msg, nil
}

// load reads the stored list. A list that cannot be decoded is logged and
// treated as empty so the next save replaces it.
func (s *ContactService) load(ctx context.Context) ([]contact.Message, error) {
	msgs, err := s.repo.Load(ctx)
	if errors.Is(err, contact.ErrCorruptList) {
		s.logger.Error("stored contact list is corrupt, starting empty", "error", err)
		return []contact.Message{}, nil
	}
	return msgs, err
}

// List returns every message, newest first.
func (s *ContactService) List(ctx context.Context) ([]contact.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	return msgs, nil
}

// MarkRead flags the message with id as read.
func (s *ContactService) MarkRead(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(msgs []contact.Message, i int) []contact.Message {
		msgs[i].Read = true
		return msgs
	})
}

// Delete removes the message with id.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(msgs []contact.Message, i int) []contact.Message {
		return slices.Delete(msgs, i, i+1)
	})
}

func (s *ContactService) mutate(ctx context.Context, id string, fn func([]contact.Message, int) []contact.Message) error {
	s.mu.Lock()
	msgs, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load contacts: %w", err)
	}
	i := slices.IndexFunc(msgs, func(m contact.Message) bool { return m.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return contact.ErrContactNotFound
	}
	if err := s.repo.Save(ctx, fn(msgs, i)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save contacts: %w", err)
	}
	s.mu.Unlock()

	_ = s.bus.Publish(ctx, event.ContactsUpdated)
	return nil
}

// Export returns every message.
func (s *ContactService) Export(ctx context.Context) ([]contact.Message, error) {
	return s.List(ctx)
}

// Import replaces every message. Each message is validated; one invalid
// message rejects the whole import.
func (s *ContactService) Import(ctx context.Context, msgs []contact.Message) error {
	for i, m := range msgs {
		if err := s.check(m); err != nil {
			return fmt.Errorf("import rejected: contacts[%d]: %w", i, err)
		}
	}
	s.mu.Lock()
	if err := s.repo.Save(ctx, msgs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save contacts: %w", err)
	}
	s.mu.Unlock()

	s.logger.Info("contacts imported", "messages", len(msgs))
	_ = s.bus.Publish(ctx, event.ContactsUpdated)
	return nil
}

// Count returns the number of stored messages, or 0 if they cannot be read.
func (s *ContactService) Count(ctx context.Context) int {
	msgs, err := s.List(ctx)
	if err != nil {
		return 0
	}
	return len(msgs)
}
