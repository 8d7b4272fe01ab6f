package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// RPCError represents a ledger RPC failure. Transport and node-side errors
// are retried on the next poll cycle; malformed requests are not.
type RPCError struct {
	Op        string // RPC method that failed (e.g. "getMultipleAccounts")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *RPCError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RPCError) IsRetriable() bool {
	return e.Retriable
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// NewRPCError creates a new retriable RPC error
func NewRPCError(op string, err error) *RPCError {
	return &RPCError{Op: op, Err: err, Retriable: true}
}

// NewFatalRPCError creates a non-retriable RPC error
func NewFatalRPCError(op string, err error) *RPCError {
	return &RPCError{Op: op, Err: err, Retriable: false}
}

// DecodeError is a typed failure raised when raw account bytes do not match
// the expected fixed layout. Never retriable: the same bytes decode the same
// way, so the caller keeps its last good value and waits for fresher bytes.
type DecodeError struct {
	Layout string // "slab", "trader_account", "open_orders"
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode " + e.Layout + ": " + e.Reason
}

func (e *DecodeError) IsRetriable() bool {
	return false
}

// LagError signals that a notification subscriber fell behind the bounded
// buffer and lost its oldest pending updates. Not a failure: the consumer
// must resynchronize from the cache instead of trusting the stream.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("notification stream lagged: %d updates dropped", e.Missed)
}

var (
	// ErrNoSubscribers is returned by a publish with no active subscribers.
	// A normal steady-state condition, logged at low severity and ignored.
	ErrNoSubscribers = errors.New("no subscribers")

	// ErrSubscriptionClosed is returned by a receive on a closed subscription
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrStaleRecord is returned when an insert carries a slot older than the
	// cached record. The cache keeps the newer snapshot.
	ErrStaleRecord = errors.New("stale account record")

	// ErrNotFound is returned for lookups on addresses never hydrated.
	// Callers must treat it as "not yet known", not permanent absence.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress is returned when an address fails to parse
	ErrInvalidAddress = errors.New("invalid address")
)
