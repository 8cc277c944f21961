// Package swdc provides a software stand-in for the DC initiator hardware:
// a fixed array of send queues with bounded depth and a completion channel.
// Tests retire posts by hand to drive specific interleavings; examples and
// the session layer can run it in auto-complete mode instead.
package swdc

import (
	"errors"
	"fmt"

	"github.com/rdmakit/dct-go/dct"
)

// ErrQueueDepth indicates a post exceeded the per-initiator hardware depth.
var ErrQueueDepth = errors.New("swdc: initiator queue depth exceeded")

// Options configures the software device.
type Options struct {
	// Slots is the number of initiator send queues. Defaults to 8.
	Slots int
	// Depth bounds unretired posts per initiator; posts beyond it fail with
	// ErrQueueDepth. A correct caller never trips this. Defaults to 16.
	Depth int
	// Auto retires every queued post with a success completion on the next
	// Poll, oldest first across all initiators.
	Auto bool
}

type post struct {
	op  dct.OpDescriptor
	seq int
}

// Device implements dct.Device in software.
type Device struct {
	opts     Options
	queues   [][]post
	ready    []dct.Completion
	seq      int
	failPost error
}

var _ dct.Device = (*Device)(nil)

// New constructs a software device.
func New(opts Options) *Device {
	if opts.Slots <= 0 {
		opts.Slots = 8
	}
	if opts.Depth <= 0 {
		opts.Depth = 16
	}
	return &Device{
		opts:   opts,
		queues: make([][]post, opts.Slots),
	}
}

// Slots returns the number of initiator queues.
func (d *Device) Slots() int {
	return len(d.queues)
}

// Post queues one descriptor on the initiator identified by slot.
func (d *Device) Post(slot int, op dct.OpDescriptor) error {
	if slot < 0 || slot >= len(d.queues) {
		return fmt.Errorf("swdc: post on unknown initiator %d", slot)
	}
	if d.failPost != nil {
		err := d.failPost
		d.failPost = nil
		return err
	}
	if len(d.queues[slot]) >= d.opts.Depth {
		return ErrQueueDepth
	}
	d.seq++
	d.queues[slot] = append(d.queues[slot], post{op: op, seq: d.seq})
	return nil
}

// Poll reports retired posts. In auto mode every queued post is retired
// first, in global post order.
func (d *Device) Poll(buf []dct.Completion) (int, error) {
	if d.opts.Auto {
		d.completeAll()
	}
	n := copy(buf, d.ready)
	d.ready = d.ready[n:]
	if len(d.ready) == 0 {
		d.ready = nil
	}
	return n, nil
}

// Complete retires the oldest unretired post on slot with success. It
// reports whether a post was pending.
func (d *Device) Complete(slot int) bool {
	return d.finish(slot, nil)
}

// Fail retires the oldest unretired post on slot with the supplied error.
func (d *Device) Fail(slot int, err error) bool {
	return d.finish(slot, err)
}

// CompleteAll retires every queued post with success, oldest first.
func (d *Device) CompleteAll() int {
	return d.completeAll()
}

// FailNextPost makes the next Post call fail with err.
func (d *Device) FailNextPost(err error) {
	d.failPost = err
}

// Queued returns the number of unretired posts on slot.
func (d *Device) Queued(slot int) int {
	if slot < 0 || slot >= len(d.queues) {
		return 0
	}
	return len(d.queues[slot])
}

// Pending returns the number of completions waiting to be polled.
func (d *Device) Pending() int {
	return len(d.ready)
}

func (d *Device) finish(slot int, err error) bool {
	if slot < 0 || slot >= len(d.queues) || len(d.queues[slot]) == 0 {
		return false
	}
	p := d.queues[slot][0]
	d.queues[slot] = d.queues[slot][1:]
	if len(d.queues[slot]) == 0 {
		d.queues[slot] = nil
	}
	d.ready = append(d.ready, dct.Completion{Slot: slot, Token: p.op.Token, Err: err})
	return true
}

func (d *Device) completeAll() int {
	count := 0
	for {
		slot := -1
		for s := range d.queues {
			if len(d.queues[s]) == 0 {
				continue
			}
			if slot == -1 || d.queues[s][0].seq < d.queues[slot][0].seq {
				slot = s
			}
		}
		if slot == -1 {
			return count
		}
		d.finish(slot, nil)
		count++
	}
}
