// Package contact holds messages submitted through the storefront contact form.
package contact

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrContactNotFound is returned when no message has the requested id.
	ErrContactNotFound = errors.New("contact message not found")
	// ErrCorruptList is returned when the stored message list cannot be decoded.
	ErrCorruptList = errors.New("corrupt contact list")
)

// Message is a stored contact form submission.
type Message struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Input is a new submission before an id and timestamp are assigned.
type Input struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Repository persists messages newest first. Load wraps ErrCorruptList when
// the stored list cannot be decoded.
type Repository interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
}
