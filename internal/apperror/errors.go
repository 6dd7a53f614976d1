// Package apperror defines the error taxonomy shared by the sync pipeline,
// the analytics aggregator and the recommendation bridge.
//
// Per-record failures (ValidationError, PersistenceError) are counted and
// logged by their callers and never cross a service boundary. Whole-call
// failures (SyncError, ConnectivityError, ErrSyncInProgress) are returned.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrSyncInProgress   = errors.New("sync already in progress for this merchant")
	ErrMerchantNotFound = errors.New("merchant not found")
)

// ConnectivityError reports an unreachable or failing external collaborator
type ConnectivityError struct {
	Service string // "platform" or "prediction"
	Op      string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s unavailable during %s: %v", e.Service, e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ValidationError reports a malformed record from an external source
type ValidationError struct {
	Entity     string
	ExternalID string
	Field      string
	Tag        string
}

func (e *ValidationError) Error() string {
	if e.ExternalID == "" {
		return fmt.Sprintf("invalid %s: field '%s' failed on '%s'", e.Entity, e.Field, e.Tag)
	}
	return fmt.Sprintf("invalid %s %s: field '%s' failed on '%s'", e.Entity, e.ExternalID, e.Field, e.Tag)
}

// PersistenceError reports a storage failure for a single record
type PersistenceError struct {
	Entity     string
	ExternalID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Entity, e.ExternalID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports a missing referenced record
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// SyncError aborts a whole sync call. Page-fetch failures are retryable.
type SyncError struct {
	Kind       string // "products" or "orders"
	MerchantID string
	Page       int
	Retryable  bool
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s sync for merchant %s failed at page %d: %v", e.Kind, e.MerchantID, e.Page, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a SyncError marked retryable
func IsRetryable(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr) && syncErr.Retryable
}
