package util

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Concrete errors wrap one of these so handlers can map them
// with errors.Is; none of them is retried by the engine.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	ErrState         = errors.New("state error")
	ErrCapacity      = errors.New("capacity error")
)

var (
	ErrTestNotFound        = fmt.Errorf("%w: test not found", ErrNotFound)
	ErrAttemptNotFound     = fmt.Errorf("%w: attempt not found", ErrNotFound)
	ErrEnrollmentNotFound  = fmt.Errorf("%w: enrollment not found", ErrNotFound)
	ErrSubjectNotFound     = fmt.Errorf("%w: subject not found", ErrNotFound)
	ErrPermissionDenied    = fmt.Errorf("%w: permission denied", ErrAuthorization)
	ErrNotTestOwner        = fmt.Errorf("%w: caller does not own the test", ErrAuthorization)
	ErrNotSubjectOwner     = fmt.Errorf("%w: caller does not own the subject", ErrAuthorization)
	ErrNotEnrolled         = fmt.Errorf("%w: caller is not enrolled", ErrAuthorization)
	ErrAlreadySubmitted    = fmt.Errorf("%w: already submitted", ErrState)
	ErrAlreadyEnrolled     = fmt.Errorf("%w: student is already enrolled", ErrState)
	ErrTestNotActive       = fmt.Errorf("%w: test is not active", ErrState)
	ErrTestAlreadyActive   = fmt.Errorf("%w: test is already active", ErrState)
	ErrTestArchived        = fmt.Errorf("%w: test is archived", ErrState)
	ErrTestHasNoQuestions  = fmt.Errorf("%w: test has no questions", ErrState)
	ErrTestStructureFrozen = fmt.Errorf("%w: questions, duration and totalMarks are frozen once attempts exist", ErrState)
	ErrAttemptNotGradable  = fmt.Errorf("%w: attempt is not submitted", ErrState)
	ErrAttemptInProgress   = fmt.Errorf("%w: attempt is still in progress", ErrState)
	ErrConcurrentUpdate    = fmt.Errorf("%w: attempt was changed by another request", ErrState)
	ErrResultNotReleased   = fmt.Errorf("%w: result not released yet", ErrState)
	ErrAttemptLimitReached = fmt.Errorf("%w: attempt limit reached", ErrCapacity)
)

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundOr maps gorm's missing-row error to the given not-found error.
func NotFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
