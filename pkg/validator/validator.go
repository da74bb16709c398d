package validator

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/aureonet/socks5-proxy/internal/socks5"
	"github.com/aureonet/socks5-proxy/pkg/errors"
)

// Validator performs input validation.
type Validator struct {
	errors []errors.ValidationError
}

// New creates a new validator.
func New() *Validator {
	return &Validator{
		errors: []errors.ValidationError{},
	}
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, errors.ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []errors.ValidationError {
	return v.errors
}

// Error returns an AppError with all validation errors.
func (v *Validator) Error() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return errors.NewValidationError(v.errors)
}

// Required validates that a field is not empty.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, fmt.Sprintf("%s is required", field))
	}
}

// MinLength validates minimum string length.
func (v *Validator) MinLength(field, value string, min int) {
	if len(value) < min {
		v.AddError(field, fmt.Sprintf("%s must be at least %d characters", field, min))
	}
}

// MaxLength validates maximum string length.
func (v *Validator) MaxLength(field, value string, max int) {
	if len(value) > max {
		v.AddError(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}

// Range validates that a numeric value falls within [min, max].
func (v *Validator) Range(field string, value, min, max int) {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// Port validates a TCP port number. 0 is accepted where it means
// "let the OS choose an ephemeral port".
func (v *Validator) Port(field string, value int, allowZero bool) {
	if allowZero && value == 0 {
		return
	}
	if value < 1 || value > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

// Host validates that a value parses as an IP literal or a syntactically
// valid hostname.
func (v *Validator) Host(field, value string) {
	if value == "" {
		return
	}
	if net.ParseIP(value) != nil {
		return
	}
	pattern := `^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`
	matched, _ := regexp.MatchString(pattern, value)
	if !matched {
		v.AddError(field, "invalid host")
	}
}

// ValidateConfig validates a socks5.Config before the server binds to it:
// bind port range, and that a username/password pair is either both set
// or both empty (spec §3 requires they be configured together).
func ValidateConfig(cfg socks5.Config) *errors.AppError {
	v := New()
	v.Host("bind_host", cfg.BindHost)
	v.Port("bind_port", int(cfg.BindPort), true)

	if (cfg.Username == "") != (cfg.Password == "") {
		v.AddError("username", "username and password must be configured together")
	}
	if cfg.RequireAuth && cfg.Username == "" {
		v.AddError("username", "username is required when authentication is required")
	}
	if cfg.MaxPending < 0 {
		v.AddError("max_pending", "max_pending must not be negative")
	}

	return v.Error()
}
