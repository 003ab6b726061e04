// ABOUTME: Lead data type and capture-form validation
// ABOUTME: Leads are the payload exchanged with the workflow-automation webhooks

package lead

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validation errors for the capture form.
var (
	ErrNameRequired  = errors.New("name is required")
	ErrEmailRequired = errors.New("email is required")
	ErrEmailInvalid  = errors.New("email address is invalid")
)

// Pragmatic email shape check; deliverability is the webhook system's problem.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxFieldLength = 2000

// Lead is a single captured lead. SubmittedAt is set by the capture flow.
type Lead struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Message     string    `json:"message,omitempty"`
	Source      string    `json:"source,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Validate checks the fields a capture form must provide. It trims whitespace
// in place before checking.
func (l *Lead) Validate() error {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.TrimSpace(l.Email)
	l.Phone = strings.TrimSpace(l.Phone)
	l.Company = strings.TrimSpace(l.Company)
	l.Message = strings.TrimSpace(l.Message)

	if l.Name == "" {
		return ErrNameRequired
	}
	if l.Email == "" {
		return ErrEmailRequired
	}
	if !emailRegex.MatchString(l.Email) {
		return ErrEmailInvalid
	}

	for name, value := range map[string]string{
		"name":    l.Name,
		"email":   l.Email,
		"phone":   l.Phone,
		"company": l.Company,
		"message": l.Message,
	} {
		if len(value) > maxFieldLength {
			return fmt.Errorf("%s exceeds %d characters", name, maxFieldLength)
		}
	}
	return nil
}
