package dct

// EndpointState tracks the lifecycle of a logical per-peer handle.
type EndpointState uint8

const (
	// StateCreated is the initial state before any binding succeeded.
	StateCreated EndpointState = iota
	// StateReady means the endpoint can issue immediately on a bound or
	// acquirable initiator.
	StateReady
	// StateNoResource means operations are deferred in the pending queue
	// until initiator budget frees up.
	StateNoResource
	// StateClosing means destruction started; new submissions are refused
	// while issued operations drain.
	StateClosing
	// StateDestroyed is terminal; all resources have been reclaimed.
	StateDestroyed
	// StateFailed is entered when the device reports a completion error.
	// The failure is surfaced upward; the endpoint never recovers.
	StateFailed
)

func (s EndpointState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateNoResource:
		return "no-resource"
	case StateClosing:
		return "closing"
	case StateDestroyed:
		return "destroyed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitStatus reports how Submit disposed of an operation.
type SubmitStatus int

const (
	// SubmitFailed means the operation was rejected; the accompanying error
	// says why.
	SubmitFailed SubmitStatus = iota
	// SubmitIssued means the operation was posted to the device immediately.
	SubmitIssued
	// SubmitQueued means no initiator budget was available and the
	// operation waits in the pending queue.
	SubmitQueued
)

func (s SubmitStatus) String() string {
	switch s {
	case SubmitIssued:
		return "issued"
	case SubmitQueued:
		return "queued"
	default:
		return "failed"
	}
}

// FlushStatus reports drain progress.
type FlushStatus int

const (
	// FlushInProgress means pending or issued operations remain.
	FlushInProgress FlushStatus = iota
	// FlushOK means the endpoint is fully drained.
	FlushOK
)

// Endpoint is the logical per-peer communication handle exposed to the layer
// above. It holds the peer's routing descriptor and, depending on policy, a
// dedicated initiator or a transient binding to whichever shared initiator is
// carrying its current operations.
//
// An endpoint is owned by its interface and must only be used from the same
// single-threaded progress context as every other call on that interface.
type Endpoint struct {
	iface    *Interface
	peer     PeerAddress
	state    EndpointState
	bound    *slot
	pending  pendingQueue
	inflight int
	failErr  error
	waiting  bool
}

// Peer returns the remote target's routing descriptor.
func (e *Endpoint) Peer() PeerAddress {
	return e.peer
}

// State returns the endpoint's current lifecycle state.
func (e *Endpoint) State() EndpointState {
	return e.state
}

// Pending returns the number of deferred, not yet issued operations.
func (e *Endpoint) Pending() int {
	return e.pending.len()
}

// Inflight returns the number of issued but unretired operations.
func (e *Endpoint) Inflight() int {
	return e.inflight
}

// BoundInitiator returns the index of the initiator the endpoint is currently
// bound to, or -1 when unbound.
func (e *Endpoint) BoundInitiator() int {
	if e.bound == nil {
		return -1
	}
	return e.bound.index
}

// Submit issues one operation, or defers it when no initiator budget is
// available. It never blocks: the result is SubmitIssued, SubmitQueued, or
// SubmitFailed with the reason. Deferral is not an error as long as the
// pending queue cap is not exceeded.
func (e *Endpoint) Submit(op Op) (SubmitStatus, error) {
	if e == nil || e.iface == nil {
		return SubmitFailed, ErrInvalidHandle{"endpoint"}
	}
	i := e.iface
	if i.closed {
		return SubmitFailed, ErrInterfaceClosed
	}
	switch e.state {
	case StateClosing, StateDestroyed:
		return SubmitFailed, ErrEndpointClosed
	case StateFailed:
		return SubmitFailed, e.failErr
	}

	pend := &pendingOp{ep: e, op: op, seq: i.nextSeq()}

	// A non-empty backlog forces queueing even if budget freed up, so the
	// per-endpoint submission order is preserved.
	if e.pending.len() == 0 {
		s := i.usableSlot(e)
		if s != nil {
			if err := i.issueOn(s, e, pend); err != nil {
				return SubmitFailed, err
			}
			e.markReady()
			return SubmitIssued, nil
		}
	}

	if i.cfg.PendingLimit > 0 && e.pending.len() >= i.cfg.PendingLimit {
		return SubmitFailed, ErrQueueFull
	}
	e.pending.push(pend)
	e.state = StateNoResource
	if e.bound == nil {
		i.addWaiter(e)
	}
	i.stats.Queued++
	return SubmitQueued, nil
}

// Flush reports whether every operation submitted on the endpoint has left
// the building: FlushOK once the pending queue is empty and no issued
// operation remains unretired, FlushInProgress otherwise. It has no side
// effects and is safe to call repeatedly; a drained or destroyed endpoint
// always reports FlushOK.
func (e *Endpoint) Flush() FlushStatus {
	if e == nil {
		return FlushOK
	}
	if e.pending.len() == 0 && e.inflight == 0 {
		return FlushOK
	}
	return FlushInProgress
}

// Close begins destruction. Operations still in the pending queue are
// canceled synchronously (they were never issued); issued operations are left
// to complete or fail through the dispatcher, and the endpoint is reclaimed
// only once the last of them retires. Close never blocks.
func (e *Endpoint) Close() error {
	if e == nil || e.iface == nil {
		return nil
	}
	return e.iface.DestroyEndpoint(e)
}

// markReady moves the endpoint to StateReady after an immediate issue or a
// full backlog drain, unless a terminal state was reached meanwhile.
func (e *Endpoint) markReady() {
	switch e.state {
	case StateCreated, StateReady, StateNoResource:
		e.state = StateReady
	}
}

// cancelPending drops every deferred operation, reporting err to each.
func (e *Endpoint) cancelPending(err error) int {
	ops := e.pending.drain()
	for _, pend := range ops {
		pend.finish(err)
	}
	return len(ops)
}
