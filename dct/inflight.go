package dct

// inflightWindow tracks the tokens posted on one initiator but not yet retired
// by a completion. The device reports completions per slot in post order, so
// retirement always happens at the head of the window. The backing ring grows
// on demand up to the configured budget instead of preallocating, since an
// interface may carry many mostly-idle initiators.
type inflightWindow struct {
	start  int
	count  int
	size   int
	buffer []uint64
}

func newInflightWindow(size int) *inflightWindow {
	return &inflightWindow{size: size}
}

// full reports whether the initiator reached its outstanding budget.
func (w *inflightWindow) full() bool {
	return w.count == w.size
}

// add records a newly posted token. The caller must check full() first.
func (w *inflightWindow) add(token uint64) {
	if w.full() {
		panic("dct: add on a full inflight window")
	}
	next := w.start + w.count
	if next >= w.size {
		next -= w.size
	}
	if next >= len(w.buffer) {
		w.grow()
	}
	w.buffer[next] = token
	w.count++
}

func (w *inflightWindow) grow() {
	newSize := len(w.buffer) * 2
	if newSize == 0 {
		newSize = 1
	} else if newSize > w.size {
		newSize = w.size
	}
	newBuffer := make([]uint64, newSize)
	copy(newBuffer, w.buffer)
	w.buffer = newBuffer
}

// head returns the oldest unretired token, if any.
func (w *inflightWindow) head() (uint64, bool) {
	if w.count == 0 {
		return 0, false
	}
	return w.buffer[w.start], true
}

// retire drops the head token and returns it.
func (w *inflightWindow) retire() (uint64, bool) {
	if w.count == 0 {
		return 0, false
	}
	token := w.buffer[w.start]
	w.count--
	if w.start++; w.start >= w.size {
		w.start -= w.size
	}
	if w.count == 0 {
		// Reset so the ring does not grow needlessly later.
		w.start = 0
	}
	return token, true
}

func (w *inflightWindow) outstanding() int {
	return w.count
}
