package dct

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCompletion indicates that the device had no completions to report.
	ErrNoCompletion = errors.New("dct: no completion available")
	// ErrEndpointClosed indicates an operation was submitted after destruction began.
	ErrEndpointClosed = errors.New("dct: endpoint closed")
	// ErrQueueFull indicates the endpoint's pending queue reached its configured cap.
	ErrQueueFull = errors.New("dct: pending queue full")
	// ErrPoolExhausted indicates that no free initiator remains for a dedicated endpoint.
	ErrPoolExhausted = errors.New("dct: initiator pool exhausted")
	// ErrInterfaceClosed indicates the owning interface has been closed.
	ErrInterfaceClosed = errors.New("dct: interface closed")
	// ErrOperationCanceled indicates a queued operation was dropped before it was issued.
	ErrOperationCanceled = errors.New("dct: operation canceled")
)

// ErrInvalidHandle indicates a nil or closed handle was used.
type ErrInvalidHandle struct {
	Resource string
}

func (e ErrInvalidHandle) Error() string {
	return "dct: invalid or closed " + e.Resource + " handle"
}

// TransportError carries a device-reported completion failure. The affected
// endpoint transitions to StateFailed and the error is surfaced to the layer
// above; no retry happens at this level.
type TransportError struct {
	Slot  int
	Token uint64
	Err   error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("dct: transport error on initiator %d (token %d): %s", e.Slot, e.Token, e.Err)
}

// Unwrap allows errors.Is / errors.As to match against the device error.
func (e TransportError) Unwrap() error {
	return e.Err
}
