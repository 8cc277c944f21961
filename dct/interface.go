package dct

import (
	"fmt"
)

// defaultProgressBatch bounds how many completions one Progress call drains
// when the caller does not say otherwise.
const defaultProgressBatch = 64

// Stats contains counters for interface activity.
type Stats struct {
	Submitted uint64
	Queued    uint64
	Completed uint64
	Errored   uint64
	Canceled  uint64
}

// Interface multiplexes logical endpoints over a fixed pool of DC initiators.
// All state above the device lives here: the slot pool, the pending queues,
// the token registry resolving completions back to operations, and the
// counters.
//
// Every method on an Interface and on its endpoints must be called from a
// single thread of execution. Waiting is expressed as SubmitQueued plus
// repeated Progress calls, never as blocking. Callers that want to drive an
// interface from several goroutines must serialize all access themselves;
// the client package does exactly that.
type Interface struct {
	cfg       Config
	dev       Device
	pool      *pool
	endpoints map[*Endpoint]struct{}
	waiting   []*Endpoint
	registry  map[uint64]*pendingOp
	tokenSeq  uint64
	orderSeq  uint64
	pollBuf   []Completion
	stats     Stats
	closed    bool
}

// New builds an interface over the supplied device. The pool is sized once
// from cfg and never resized.
func New(dev Device, cfg Config) (*Interface, error) {
	if dev == nil {
		return nil, ErrInvalidHandle{"device"}
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Interface{
		cfg:       cfg,
		dev:       dev,
		pool:      newPool(cfg),
		endpoints: make(map[*Endpoint]struct{}),
		registry:  make(map[uint64]*pendingOp),
		pollBuf:   make([]Completion, defaultProgressBatch),
	}, nil
}

// Config returns the configuration the interface was created with, after
// defaulting.
func (i *Interface) Config() Config {
	return i.cfg
}

// Policy returns the interface-wide initiator assignment policy.
func (i *Interface) Policy() Policy {
	return i.cfg.Policy
}

// PoolSize returns the number of initiators reserved for this interface.
func (i *Interface) PoolSize() int {
	return i.pool.size()
}

// FreeInitiators returns how many initiators are currently unassigned.
func (i *Interface) FreeInitiators() int {
	return i.pool.freeCount()
}

// EndpointCount returns the number of live endpoints.
func (i *Interface) EndpointCount() int {
	return len(i.endpoints)
}

// Stats returns a snapshot of interface counters.
func (i *Interface) Stats() Stats {
	if i == nil {
		return Stats{}
	}
	return i.stats
}

// CreateEndpoint opens a logical connection to the peer identified by addr.
// Under the dedicated policy a private initiator is pinned immediately and
// creation fails with ErrPoolExhausted when none is free; under the shared
// policy binding happens lazily on first submit and creation never fails for
// lack of initiators.
func (i *Interface) CreateEndpoint(addr PeerAddress) (*Endpoint, error) {
	if i == nil {
		return nil, ErrInvalidHandle{"interface"}
	}
	if i.closed {
		return nil, ErrInterfaceClosed
	}
	ep := &Endpoint{iface: i, peer: addr, state: StateCreated}
	if i.cfg.Policy == PolicyDedicated {
		s, err := i.pool.acquireDedicated(ep)
		if err != nil {
			return nil, err
		}
		ep.bound = s
		ep.state = StateReady
	}
	i.endpoints[ep] = struct{}{}
	return ep, nil
}

// DestroyEndpoint begins tearing down ep. Deferred operations are canceled
// synchronously; issued ones drain through the dispatcher, and the endpoint
// is reclaimed once the last of them retires. Destroying an endpoint twice is
// a no-op.
func (i *Interface) DestroyEndpoint(ep *Endpoint) error {
	if i == nil {
		return ErrInvalidHandle{"interface"}
	}
	if ep == nil {
		return nil
	}
	if ep.iface != i {
		return fmt.Errorf("dct: endpoint belongs to another interface")
	}
	switch ep.state {
	case StateClosing, StateDestroyed:
		return nil
	}
	i.stats.Canceled += uint64(ep.cancelPending(ErrOperationCanceled))
	i.removeWaiter(ep)
	ep.state = StateClosing
	i.maybeFinalize(ep)
	return nil
}

// Progress drains up to max device completions, attributes each to its
// originating endpoint, and redistributes freed budget to pending operations.
// It returns the number of completions processed. max <= 0 selects a default
// batch. Progress must be called repeatedly; there is no background thread.
func (i *Interface) Progress(max int) (int, error) {
	if i == nil {
		return 0, ErrInvalidHandle{"interface"}
	}
	if i.closed {
		return 0, ErrInterfaceClosed
	}
	if max <= 0 {
		max = defaultProgressBatch
	}
	if cap(i.pollBuf) < max {
		i.pollBuf = make([]Completion, max)
	}
	buf := i.pollBuf[:max]

	n, pollErr := i.dev.Poll(buf)
	var firstErr error
	for _, c := range buf[:n] {
		if err := i.retire(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if pollErr != nil && firstErr == nil {
		firstErr = fmt.Errorf("poll completions: %w", pollErr)
	}
	return n, firstErr
}

// Close tears the interface down. Deferred operations are canceled and any
// still-issued operations are resolved with ErrInterfaceClosed; callers that
// need clean drainage should Flush their endpoints and run Progress until
// idle first.
func (i *Interface) Close() error {
	if i == nil || i.closed {
		return nil
	}
	i.closed = true
	for ep := range i.endpoints {
		i.stats.Canceled += uint64(ep.cancelPending(ErrOperationCanceled))
		ep.state = StateDestroyed
		ep.bound = nil
		delete(i.endpoints, ep)
	}
	for token, pend := range i.registry {
		delete(i.registry, token)
		pend.finish(ErrInterfaceClosed)
	}
	i.waiting = nil
	return nil
}

func (i *Interface) nextSeq() uint64 {
	i.orderSeq++
	return i.orderSeq
}

func (i *Interface) takeToken() uint64 {
	i.tokenSeq++
	return i.tokenSeq
}

// usableSlot returns an initiator ep may issue on right now, acquiring a
// shared one when the endpoint is unbound, or nil when no budget is
// available.
func (i *Interface) usableSlot(ep *Endpoint) *slot {
	if ep.bound != nil {
		if ep.bound.hasBudget() {
			return ep.bound
		}
		return nil
	}
	if i.cfg.Policy != PolicyShared {
		return nil
	}
	s, ok := i.pool.acquireShared(ep)
	if !ok {
		return nil
	}
	ep.bound = s
	return s
}

// issueOn posts one descriptor for ep on s and records it against the slot's
// budget. The caller reports any error to the operation's owner.
func (i *Interface) issueOn(s *slot, ep *Endpoint, pend *pendingOp) error {
	token := i.takeToken()
	pend.token = token
	desc := OpDescriptor{Token: token, Peer: ep.peer, Payload: pend.op.Payload}
	if err := i.dev.Post(s.index, desc); err != nil {
		i.releaseIfIdle(s)
		return fmt.Errorf("post operation: %w", err)
	}
	s.window.add(token)
	ep.inflight++
	i.registry[token] = pend
	i.stats.Submitted++
	return nil
}

// retire processes one completion: budget bookkeeping, endpoint attribution,
// error surfacing, then pending-queue dispatch for the freed slot.
func (i *Interface) retire(c Completion) error {
	if c.Slot < 0 || c.Slot >= i.pool.size() {
		return fmt.Errorf("dct: completion for unknown initiator %d", c.Slot)
	}
	s := &i.pool.slots[c.Slot]
	head, ok := s.window.head()
	if !ok {
		return fmt.Errorf("dct: completion on idle initiator %d (token %d)", c.Slot, c.Token)
	}
	if head != c.Token {
		return fmt.Errorf("dct: out-of-order completion on initiator %d: got token %d, expected %d", c.Slot, c.Token, head)
	}
	s.window.retire()

	pend := i.registry[c.Token]
	if pend == nil {
		return fmt.Errorf("dct: completion for unknown token %d", c.Token)
	}
	delete(i.registry, c.Token)

	ep := pend.ep
	ep.inflight--
	if c.Err != nil {
		terr := TransportError{Slot: c.Slot, Token: c.Token, Err: c.Err}
		i.stats.Errored++
		pend.finish(terr)
		i.failEndpoint(ep, terr)
	} else {
		i.stats.Completed++
		pend.finish(nil)
	}

	i.dispatchSlot(s)
	i.maybeFinalize(ep)
	return nil
}

// dispatchSlot refills s from its owner's backlog while budget remains, then
// redistributes the slot if it went idle under the shared policy.
func (i *Interface) dispatchSlot(s *slot) {
	i.drainOwner(s)
	if s.state == slotFree && i.cfg.Policy == PolicyShared {
		i.dispatchFree()
	}
}

// drainOwner issues the owner's deferred operations on s in submission order
// while spare budget remains. A shared slot whose owner ends up with neither
// backlog nor unretired posts is released back to the free list.
func (i *Interface) drainOwner(s *slot) {
	for s.state == slotAllocated && s.owner != nil && s.hasBudget() {
		ep := s.owner
		pend := ep.pending.pop()
		if pend == nil {
			break
		}
		if err := i.issueOn(s, ep, pend); err != nil {
			i.stats.Errored++
			pend.finish(err)
			continue
		}
	}
	if s.state != slotAllocated || s.owner == nil {
		return
	}
	ep := s.owner
	if ep.pending.len() == 0 {
		if ep.state == StateNoResource {
			ep.markReady()
		}
		i.releaseIfIdle(s)
	}
}

// dispatchFree grants free shared initiators to waiting endpoints, oldest
// deferred operation first, so worst-case wait stays bounded.
func (i *Interface) dispatchFree() {
	for i.pool.freeCount() > 0 {
		ep := i.takeOldestWaiter()
		if ep == nil {
			return
		}
		s, ok := i.pool.acquireShared(ep)
		if !ok {
			return
		}
		ep.bound = s
		i.drainOwner(s)
	}
}

func (i *Interface) addWaiter(ep *Endpoint) {
	if ep.waiting {
		return
	}
	ep.waiting = true
	i.waiting = append(i.waiting, ep)
}

func (i *Interface) removeWaiter(ep *Endpoint) {
	if !ep.waiting {
		return
	}
	ep.waiting = false
	for idx, cand := range i.waiting {
		if cand == ep {
			i.waiting = append(i.waiting[:idx], i.waiting[idx+1:]...)
			return
		}
	}
}

// takeOldestWaiter removes and returns the waiting endpoint whose head
// deferred operation has the smallest enqueue order. Stale entries are
// dropped along the way.
func (i *Interface) takeOldestWaiter() *Endpoint {
	var (
		best    *Endpoint
		bestIdx int
		bestSeq uint64
	)
	idx := 0
	for _, ep := range i.waiting {
		seq, ok := ep.pending.headSeq()
		if !ok || ep.bound != nil || ep.state != StateNoResource {
			ep.waiting = false
			continue
		}
		i.waiting[idx] = ep
		if best == nil || seq < bestSeq {
			best = ep
			bestIdx = idx
			bestSeq = seq
		}
		idx++
	}
	i.waiting = i.waiting[:idx]
	if best == nil {
		return nil
	}
	best.waiting = false
	i.waiting = append(i.waiting[:bestIdx], i.waiting[bestIdx+1:]...)
	return best
}

// releaseIfIdle returns a shared slot to the free list once its owner has no
// unretired posts and no backlog. Dedicated slots stay pinned until their
// endpoint is destroyed.
func (i *Interface) releaseIfIdle(s *slot) {
	if i.cfg.Policy != PolicyShared || s.state != slotAllocated {
		return
	}
	ep := s.owner
	if ep == nil || s.outstanding() != 0 || ep.pending.len() != 0 {
		return
	}
	ep.bound = nil
	i.pool.release(s)
}

// failEndpoint moves ep to StateFailed and drops its backlog. Endpoints
// already tearing down keep draining instead.
func (i *Interface) failEndpoint(ep *Endpoint, terr error) {
	switch ep.state {
	case StateClosing, StateDestroyed, StateFailed:
	default:
		ep.state = StateFailed
		ep.failErr = terr
	}
	i.stats.Canceled += uint64(ep.cancelPending(terr))
	i.removeWaiter(ep)
}

// maybeFinalize completes deferred destruction once the last issued
// operation has retired.
func (i *Interface) maybeFinalize(ep *Endpoint) {
	if ep.state != StateClosing || ep.inflight != 0 {
		return
	}
	if ep.bound != nil {
		s := ep.bound
		ep.bound = nil
		i.pool.release(s)
		if i.cfg.Policy == PolicyShared {
			i.dispatchFree()
		}
	}
	ep.state = StateDestroyed
	delete(i.endpoints, ep)
}
