package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants map to Redis command names for error context.
const (
	OpPing         = "PING"
	OpGet          = "GET"
	OpSet          = "SET"
	OpDel          = "DEL"
	OpIncrBy       = "INCRBY"
	OpXAdd         = "XADD"
	OpXGroupCreate = "XGROUP CREATE"
	OpXReadGroup   = "XREADGROUP"
	OpXAck         = "XACK"
	OpXPending     = "XPENDING"
	OpXClaim       = "XCLAIM"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
