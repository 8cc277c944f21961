package dct

// Op describes one send operation handed to Submit. OnComplete, when set, is
// invoked exactly once from the progress context: with nil once the matching
// completion retires, with the device error if the completion failed, or with
// ErrOperationCanceled if the operation was dropped from the pending queue
// during endpoint destruction.
type Op struct {
	Payload    []byte
	OnComplete func(error)
}

// pendingOp is the queue entry for a deferred or issued operation.
type pendingOp struct {
	ep    *Endpoint
	op    Op
	seq   uint64
	token uint64
}

func (p *pendingOp) finish(err error) {
	if p.op.OnComplete != nil {
		p.op.OnComplete(err)
	}
}

// pendingQueue is a FIFO of deferred operations for one endpoint. Submission
// order is the only order: operations leave from the head when budget frees
// up, so per-endpoint issue order always matches submit order.
type pendingQueue struct {
	ops []*pendingOp
}

func (q *pendingQueue) push(p *pendingOp) {
	q.ops = append(q.ops, p)
}

func (q *pendingQueue) pop() *pendingOp {
	if len(q.ops) == 0 {
		return nil
	}
	p := q.ops[0]
	q.ops[0] = nil
	q.ops = q.ops[1:]
	if len(q.ops) == 0 {
		q.ops = nil
	}
	return p
}

// headSeq returns the enqueue order of the oldest deferred operation. The
// pool uses it under the shared policy to grant freed budget to the
// longest-waiting endpoint first.
func (q *pendingQueue) headSeq() (uint64, bool) {
	if len(q.ops) == 0 {
		return 0, false
	}
	return q.ops[0].seq, true
}

func (q *pendingQueue) len() int {
	return len(q.ops)
}

// drain empties the queue and returns the removed entries in order.
func (q *pendingQueue) drain() []*pendingOp {
	ops := q.ops
	q.ops = nil
	return ops
}
