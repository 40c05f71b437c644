package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownReport       = errors.New("unknown report")
	ErrLastProfile         = errors.New("cannot delete the last profile")
	ErrNetworkFailure      = errors.New("network failure")
	ErrValidation          = errors.New("validation failed")
	ErrPartialRefresh      = errors.New("partial refresh failure")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRefreshInProgress   = errors.New("refresh already in progress")
	ErrCoordinatorClosed   = errors.New("refresh coordinator closed")
	ErrNoSession           = errors.New("no active session")
)

// NetworkError reports an unreachable backend or a non-2xx response.
// Status is zero when no response was received.
type NetworkError struct {
	Op      string
	Status  int
	Message string
}

func (e *NetworkError) Error() string {
	if e == nil {
		return ErrNetworkFailure.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %s", e.Op, ErrNetworkFailure, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d): %s", e.Op, ErrNetworkFailure, e.Status, e.Message)
}

func (e *NetworkError) Is(target error) bool { return target == ErrNetworkFailure }

// ValidationError carries field errors reported locally or by the backend.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for f := range e.Fields {
			names = append(names, f)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, f := range names {
			parts = append(parts, f+" "+strings.Join(e.Fields[f], ", "))
		}
		msg = strings.Join(parts, "; ")
	}
	if msg == "" {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RefreshFailure records one failed refresh callback of a sweep.
type RefreshFailure struct {
	Subscriber string
	Err        error
}

// PartialRefreshError lists the callbacks that failed during a sweep.
type PartialRefreshError struct {
	Failures []RefreshFailure
}

func (e *PartialRefreshError) Error() string {
	if e == nil || len(e.Failures) == 0 {
		return ErrPartialRefresh.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Subscriber, f.Err))
	}
	return fmt.Sprintf("%s: %s", ErrPartialRefresh, strings.Join(parts, "; "))
}

func (e *PartialRefreshError) Is(target error) bool { return target == ErrPartialRefresh }
