package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateProduct checks a single product against the catalog schema.
func ValidateProduct(p Product) error {
	if err := validate.Struct(p); err != nil {
		return formatValidationErrors(p.ID, err)
	}
	return nil
}

// ValidateSnapshot checks every product and rejects duplicate ids.
// The hero list is not checked here; FilterHero repairs it.
func ValidateSnapshot(s Snapshot) error {
	seen := make(map[string]struct{}, len(s.Products))
	for i, p := range s.Products {
		if err := ValidateProduct(p); err != nil {
			return fmt.Errorf("products[%d]: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("products[%d]: %w: duplicate id %q", i, ErrInvalidProduct, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func formatValidationErrors(id string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	if id == "" {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w %q: %s", ErrInvalidProduct, id, strings.Join(msgs, "; "))
}
