package usecase

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidateLead(lead entity.Lead) ValidationErrors {
	var errors ValidationErrors

	if strings.TrimSpace(lead.Name) == "" {
		errors = append(errors, ValidationError{"name", "name is required"})
	} else if len(lead.Name) > 200 {
		errors = append(errors, ValidationError{"name", "name must not exceed 200 characters"})
	}

	email := strings.TrimSpace(lead.Email)
	phone := strings.TrimSpace(lead.Phone)

	if email == "" && phone == "" {
		errors = append(errors, ValidationError{"email", "email or phone required"})
	}
	if email != "" && !isValidEmail(email) {
		errors = append(errors, ValidationError{"email", "email is invalid"})
	}

	if lead.Intent != "" && !lead.Intent.Valid() {
		errors = append(errors, ValidationError{"intent", "intent is invalid"})
	}
	if lead.Source != "" && !lead.Source.Valid() {
		errors = append(errors, ValidationError{"source", "source is invalid"})
	}

	return errors
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <a@b>"; the form field must be the bare address.
	return addr.Address == email && strings.Contains(addr.Address, "@")
}
