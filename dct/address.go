package dct

import (
	"encoding/hex"
)

// PeerAddress is the opaque routing descriptor for a remote DC target. It is
// produced by an out-of-band address exchange and used verbatim by this layer:
// stored once per endpoint and carried in every descriptor issued on a shared
// initiator. The value is immutable after construction.
type PeerAddress struct {
	raw string
}

// NewPeerAddress wraps the raw descriptor bytes obtained from address exchange.
func NewPeerAddress(raw []byte) PeerAddress {
	return PeerAddress{raw: string(raw)}
}

// Bytes returns a copy of the raw descriptor.
func (a PeerAddress) Bytes() []byte {
	return []byte(a.raw)
}

// IsZero reports whether the address carries no routing information.
func (a PeerAddress) IsZero() bool {
	return len(a.raw) == 0
}

func (a PeerAddress) String() string {
	if a.IsZero() {
		return "<unset>"
	}
	const max = 8
	if len(a.raw) > max {
		return hex.EncodeToString([]byte(a.raw[:max])) + "..."
	}
	return hex.EncodeToString([]byte(a.raw))
}
