package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator is a type able to validate itself. Validate inspects the type for
// syntactic or semantic issues, and returns a descriptive error if any
// violations are encountered. It is recommended that Validate return instances
// of ValidationError where possible, which enables tracking nested contexts.
type Validator interface {
	Validate() error
}

// ValidationError is an error implementation which captures its validation context.
type ValidationError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Context) != 0 {
		return strings.Join(ve.Context, ".") + ": " + ve.Err.Error()
	} else {
		return ve.Err.Error()
	}
}

// ExtendContext type-checks |err| to a *ValidationError, and if matched extends
// it with |context|. In all cases the value of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	if ve, ok := err.(*ValidationError); ok {
		ve.Context = append([]string{fmt.Sprintf(format, args...)}, ve.Context...)
	}
	return err
}

// NewValidationError parallels fmt.Errorf to returns a new ValidationError instance.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// ValidateQueueName ensures |n| is usable as a queue name. Queue names are
// persisted as key components and as comma-joined override lists, so they
// may not be empty, and may not contain '/', ',' or whitespace.
func ValidateQueueName(n string) error {
	if n == "" {
		return NewValidationError("empty name")
	} else if l := len(n); l > maxQueueNameLen {
		return NewValidationError("invalid length (%d; expected length <= %d)", l, maxQueueNameLen)
	} else if strings.ContainsAny(n, "/, \t\r\n") {
		return NewValidationError("not a valid queue name (%q)", n)
	} else if n == OrchestratedMarker {
		return NewValidationError("%s is reserved", OrchestratedMarker)
	}
	return nil
}

// ValidateNamespaceName ensures |n| consists only of letters, digits, and underscores.
func ValidateNamespaceName(n string) error {
	if n == "" {
		return NewValidationError("cannot be empty")
	} else if !reNamespace.MatchString(n) {
		return NewValidationError("must contain alphanumerics and underscores (%q)", n)
	}
	return nil
}

// ValidateHostname ensures |n| is usable as a hostname key component.
func ValidateHostname(n string) error {
	if n == "" {
		return NewValidationError("empty hostname")
	} else if strings.ContainsAny(n, "/ \t\r\n") {
		return NewValidationError("not a valid hostname (%q)", n)
	}
	return nil
}

var reNamespace = regexp.MustCompile(`^\w+$`)

const maxQueueNameLen = 512
