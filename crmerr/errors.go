// Package crmerr holds the error taxonomy shared by the services and the
// HTTP layer: validation failures, missing resources and partial cascade
// failures. Anything else is an internal error.
package crmerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every violation found in a payload.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func Invalid(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

// ErrNothingToUpdate is returned for partial updates without any recognized field.
var ErrNothingToUpdate = errors.New("no fields to update")

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// CascadeError reports the notes that could not be deleted together with
// their customer. The customer itself is left in place.
type CascadeError struct {
	CustomerID string
	Failed     map[string]error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("deleting customer %s: %d note(s) could not be deleted: %v", e.CustomerID, len(e.Failed), e.Unwrap())
}

// Unwrap joins the per-note failures.
func (e *CascadeError) Unwrap() error {
	errs := make([]error, 0, len(e.Failed))
	for _, id := range e.FailedIDs() {
		errs = append(errs, fmt.Errorf("note %s: %w", id, e.Failed[id]))
	}
	return errors.Join(errs...)
}

// FailedIDs returns the ids of the notes that were not deleted, sorted.
func (e *CascadeError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) || errors.Is(err, ErrNothingToUpdate)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
