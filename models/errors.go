package models

import (
	"errors"
	"fmt"
	"time"
)

// Exit codes per failure class so calling automation can branch on cause.
const (
	ExitOK                 = 0
	ExitGeneral            = 1
	ExitConfiguration      = 2
	ExitValidation         = 3
	ExitApply              = 4
	ExitTimeout            = 5
	ExitVerification       = 6
	ExitDestructionAborted = 7
)

// ConfigurationError indicates invalid or missing required input. The
// pipeline never touches the cluster after one of these.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ValidationError indicates the rendered manifest was rejected by the
// dry-run check. The previously published manifest is preserved.
type ValidationError struct {
	Output string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed: %s", e.Output)
}

// ApplyError indicates the cluster rejected a create or update. No
// automatic rollback is attempted.
type ApplyError struct {
	Resource string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed for %s: %v", e.Resource, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// TimeoutError indicates a bounded wait exceeded its maximum elapsed time.
type TimeoutError struct {
	What    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %s", e.What, e.Elapsed)
}

// VerificationError indicates one or more functional checks failed after
// convergence. The deployment itself is left in place.
type VerificationError struct {
	Failed int
	Total  int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %d of %d checks did not pass", e.Failed, e.Total)
}

// DestructionAbortedError is a safety stop, not a bug: teardown declined
// because confirmation was missing in a non-interactive context.
type DestructionAbortedError struct {
	Reason string
}

func (e *DestructionAbortedError) Error() string {
	return fmt.Sprintf("destruction aborted: %s", e.Reason)
}

// ExitCodeFor maps an error to the process exit code for its failure
// class. Classification survives wrapping.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		configurationErr *ConfigurationError
		validationErr    *ValidationError
		applyErr         *ApplyError
		timeoutErr       *TimeoutError
		verificationErr  *VerificationError
		abortedErr       *DestructionAbortedError
	)
	switch {
	case errors.As(err, &configurationErr):
		return ExitConfiguration
	case errors.As(err, &validationErr):
		return ExitValidation
	case errors.As(err, &applyErr):
		return ExitApply
	case errors.As(err, &timeoutErr):
		return ExitTimeout
	case errors.As(err, &verificationErr):
		return ExitVerification
	case errors.As(err, &abortedErr):
		return ExitDestructionAborted
	default:
		return ExitGeneral
	}
}
