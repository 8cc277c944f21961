package dct

type slotState uint8

const (
	slotFree slotState = iota
	slotAllocated
)

// slot is one DC initiator inside the pool: a hardware sending context with a
// bounded in-flight budget. The owner pointer is a non-owning back-reference;
// it never extends the endpoint's lifetime and the pool tolerates the owner
// having begun destruction.
type slot struct {
	index  int
	state  slotState
	owner  *Endpoint
	window *inflightWindow
}

func (s *slot) hasBudget() bool {
	return !s.window.full()
}

func (s *slot) outstanding() int {
	return s.window.outstanding()
}

func (s *slot) assign(ep *Endpoint) {
	s.state = slotAllocated
	s.owner = ep
}

func (s *slot) clear() {
	s.state = slotFree
	s.owner = nil
}
