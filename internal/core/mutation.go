package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Operation names a call made against the expense service.
type Operation string

const (
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// SuccessStatus is the only status code the service answers with when op succeeds.
func (op Operation) SuccessStatus() int {
	switch op {
	case OpCreate:
		return http.StatusCreated
	case OpDelete:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

// Mutation records one attempted change against the service.
type Mutation struct {
	Op        Operation
	ExpenseID int64 // zero when a create was rejected
	Status    int   // zero when no response was received
	Applied   bool
	At        time.Time
}

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrNotFound         = errors.New("expense not found")
)

// StatusError is returned when the service answers with anything other than
// the success status of the operation.
type StatusError struct {
	Op      Operation
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s %d: %s", e.Op, ErrUnexpectedStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s %d", e.Op, ErrUnexpectedStatus, e.Code)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnexpectedStatus:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
