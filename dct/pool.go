package dct

// pool owns the fixed array of initiator slots for one interface instance.
// It is sized at interface creation and never resized. All mutation happens
// through the acquire/release paths below, which execute only on the single
// progress context.
type pool struct {
	policy Policy
	slots  []slot
	free   []int
	cursor int
}

func newPool(cfg Config) *pool {
	p := &pool{
		policy: cfg.Policy,
		slots:  make([]slot, cfg.PoolSize),
		free:   make([]int, 0, cfg.PoolSize),
	}
	for i := range p.slots {
		p.slots[i] = slot{index: i, window: newInflightWindow(cfg.MaxOutstanding)}
		p.free = append(p.free, i)
	}
	return p
}

func (p *pool) size() int {
	return len(p.slots)
}

func (p *pool) freeCount() int {
	return len(p.free)
}

// acquireDedicated pins a free slot to ep for the endpoint's lifetime.
func (p *pool) acquireDedicated(ep *Endpoint) (*slot, error) {
	if len(p.free) == 0 {
		return nil, ErrPoolExhausted
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	s := &p.slots[idx]
	s.assign(ep)
	return s, nil
}

// acquireShared grants ep a free slot using round-robin selection. The scan
// starts one past the last grant and wraps, so every slot is visited within
// one pool-sized pass and no waiter is starved behind peers of equal standing.
func (p *pool) acquireShared(ep *Endpoint) (*slot, bool) {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		idx := p.cursor
		if p.cursor++; p.cursor >= n {
			p.cursor = 0
		}
		s := &p.slots[idx]
		if s.state != slotFree {
			continue
		}
		p.removeFree(idx)
		s.assign(ep)
		return s, true
	}
	return nil, false
}

// release returns a slot to the free list. A slot may only be released once
// its current owner has no unretired posts on it; reassigning earlier would
// let one endpoint's completions be attributed to another.
func (p *pool) release(s *slot) {
	if s.outstanding() != 0 {
		panic("dct: releasing initiator with unretired posts")
	}
	s.clear()
	p.free = append(p.free, s.index)
}

func (p *pool) removeFree(idx int) {
	for i, v := range p.free {
		if v == idx {
			p.free = append(p.free[:i], p.free[i+1:]...)
			return
		}
	}
}
