package dct

// OpDescriptor describes one work request placed on an initiator. The token is
// assigned by the interface when the request is issued and echoed back in the
// matching Completion. Peer carries the remote DC target's routing descriptor;
// a shared initiator has no peer of its own, so every descriptor must be
// self-addressed.
type OpDescriptor struct {
	Token   uint64
	Peer    PeerAddress
	Payload []byte
}

// Completion reports one retired work request. Err is nil on success and
// carries the device-reported failure otherwise.
type Completion struct {
	Slot  int
	Token uint64
	Err   error
}

// Device is the hardware queue-pair collaborator behind the interface: a fixed
// array of DC initiator send queues addressed by slot index, plus a completion
// channel shared by all of them.
//
// Post must either accept the descriptor or fail immediately; it never blocks.
// Completions for a given slot are reported in post order. The caller
// guarantees that no more than the configured outstanding budget is posted per
// slot before completions are polled back.
type Device interface {
	// Post places a work request on the initiator identified by slot.
	Post(slot int, op OpDescriptor) error
	// Poll fills buf with available completions and returns how many were
	// written. Zero with a nil error means nothing was pending.
	Poll(buf []Completion) (int, error)
}
