package protocol

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ConfigurationError indicates the namespace is not configured to satisfy a
// request, eg because no queue weights are defined.
type ConfigurationError struct {
	Namespace string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("namespace %s: %s", e.Namespace, e.Reason)
}

// NamespaceError indicates an invalid configuration-set lifecycle operation.
type NamespaceError struct {
	Namespace string
	Reason    string
}

func (e *NamespaceError) Error() string {
	return fmt.Sprintf("namespace %s: %s", e.Namespace, e.Reason)
}

// LockNotAcquired indicates the fleet lock could not be obtained within the
// wait bound, and no fallback was supplied.
type LockNotAcquired struct {
	Key  string
	Wait time.Duration
}

func (e *LockNotAcquired) Error() string {
	return fmt.Sprintf("failed to acquire lock %s within %s", e.Key, e.Wait)
}

// NewConfigurationError returns a *ConfigurationError of the namespace.
func NewConfigurationError(ns, format string, args ...interface{}) error {
	return &ConfigurationError{Namespace: ns, Reason: fmt.Sprintf(format, args...)}
}

// NewNamespaceError returns a *NamespaceError of the namespace.
func NewNamespaceError(ns, format string, args ...interface{}) error {
	return &NamespaceError{Namespace: ns, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation returns true if the Cause of |err| is a *ValidationError.
func IsValidation(err error) bool {
	var _, ok = errors.Cause(err).(*ValidationError)
	return ok
}

// IsConfiguration returns true if the Cause of |err| is a *ConfigurationError.
func IsConfiguration(err error) bool {
	var _, ok = errors.Cause(err).(*ConfigurationError)
	return ok
}

// IsNamespace returns true if the Cause of |err| is a *NamespaceError.
func IsNamespace(err error) bool {
	var _, ok = errors.Cause(err).(*NamespaceError)
	return ok
}

// IsLockNotAcquired returns true if the Cause of |err| is a *LockNotAcquired.
func IsLockNotAcquired(err error) bool {
	var _, ok = errors.Cause(err).(*LockNotAcquired)
	return ok
}
