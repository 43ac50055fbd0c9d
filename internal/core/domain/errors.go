package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by the engines.
var (
	ErrToolUnavailable      = errors.New("required tool unavailable")
	ErrModeTransitionFailed = errors.New("monitor mode transition failed")
	ErrMalformedRecord      = errors.New("malformed record")
	ErrProcessTimeout       = errors.New("process timed out")
	ErrPersistence          = errors.New("persistence failure")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidMAC           = errors.New("invalid MAC address")
	ErrInvalidInterfaceName = errors.New("invalid interface name")
	ErrNotFound             = errors.New("not found")
)

// ToolUnavailableError reports a missing external binary.
type ToolUnavailableError struct {
	Tool string
	Hint string
}

func (e *ToolUnavailableError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s not found (%s)", e.Tool, e.Hint)
	}
	return fmt.Sprintf("%s not found", e.Tool)
}

func (e *ToolUnavailableError) Unwrap() error {
	return ErrToolUnavailable
}

// ModeTransitionError wraps a failed monitor/managed switch.
type ModeTransitionError struct {
	Interface string
	Op        string // "enable" or "disable"
	Err       error
}

func (e *ModeTransitionError) Error() string {
	return fmt.Sprintf("%s monitor mode on %s: %v", e.Op, e.Interface, e.Err)
}

func (e *ModeTransitionError) Unwrap() []error {
	return []error{ErrModeTransitionFailed, e.Err}
}

// MalformedRecordError describes a skipped row of tool output.
type MalformedRecordError struct {
	Section string
	Line    int
	Reason  string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record at line %d: %s", e.Section, e.Line, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// ProcessTimeoutError is returned when a supervised process exceeds its bound.
type ProcessTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *ProcessTimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s", e.Command, e.Timeout)
}

func (e *ProcessTimeoutError) Unwrap() error {
	return ErrProcessTimeout
}

// PersistenceError wraps storage failures with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
