package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStoreFailure    = errors.New("store failure")
	ErrPolicyDenied    = errors.New("policy denied")
)

// Denial reasons reported to the sender.
const (
	ReasonCrossCompany     = "cross-company"
	ReasonSelfMessage      = "self-message"
	ReasonUnsupportedActor = "unsupported-actor"
)

// PolicyError carries the reason an exchange was refused.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return "policy denied: " + e.Reason
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPolicyDenied
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreFailure, err)
}
