package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateUser checks a record against the directory schema.
func ValidateUser(u User) error {
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidUser, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w %q: %s", ErrInvalidUser, u.Email, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateDirectory checks every record and rejects duplicate emails.
func ValidateDirectory(users []User) error {
	seen := make(map[string]struct{}, len(users))
	for i, u := range users {
		if err := ValidateUser(u); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		if _, dup := seen[u.Email]; dup {
			return fmt.Errorf("users[%d]: %w: duplicate email %q", i, ErrInvalidUser, u.Email)
		}
		seen[u.Email] = struct{}{}
	}
	return nil
}
