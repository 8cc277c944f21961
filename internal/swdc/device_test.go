package swdc

import (
	"errors"
	"testing"

	"github.com/rdmakit/dct-go/dct"
)

func TestDeviceCompleteOrderAndDepth(t *testing.T) {
	dev := New(Options{Slots: 2, Depth: 2})

	for token := uint64(1); token <= 2; token++ {
		if err := dev.Post(0, dct.OpDescriptor{Token: token}); err != nil {
			t.Fatalf("post %d: %v", token, err)
		}
	}
	if err := dev.Post(0, dct.OpDescriptor{Token: 3}); !errors.Is(err, ErrQueueDepth) {
		t.Fatalf("over-depth post: %v, want ErrQueueDepth", err)
	}
	if err := dev.Post(1, dct.OpDescriptor{Token: 3}); err != nil {
		t.Fatalf("post on other initiator: %v", err)
	}

	dev.Complete(0)
	dev.Complete(0)
	dev.Complete(1)

	buf := make([]dct.Completion, 4)
	n, err := dev.Poll(buf)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 3 {
		t.Fatalf("polled %d completions want 3", n)
	}
	for idx, want := range []uint64{1, 2, 3} {
		if buf[idx].Token != want || buf[idx].Err != nil {
			t.Fatalf("completion %d: token=%d err=%v want token=%d", idx, buf[idx].Token, buf[idx].Err, want)
		}
	}
}

func TestDeviceAutoCompletesInPostOrder(t *testing.T) {
	dev := New(Options{Slots: 2, Depth: 4, Auto: true})

	dev.Post(1, dct.OpDescriptor{Token: 1})
	dev.Post(0, dct.OpDescriptor{Token: 2})
	dev.Post(1, dct.OpDescriptor{Token: 3})

	buf := make([]dct.Completion, 8)
	n, err := dev.Poll(buf)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 3 {
		t.Fatalf("polled %d completions want 3", n)
	}
	for idx, want := range []uint64{1, 2, 3} {
		if buf[idx].Token != want {
			t.Fatalf("auto completion order: got token %d at %d, want %d", buf[idx].Token, idx, want)
		}
	}
}

func TestDeviceFailAndFailNextPost(t *testing.T) {
	dev := New(Options{Slots: 1, Depth: 2})

	hwErr := errors.New("cqe error")
	dev.Post(0, dct.OpDescriptor{Token: 1})
	dev.Fail(0, hwErr)

	buf := make([]dct.Completion, 1)
	n, _ := dev.Poll(buf)
	if n != 1 || !errors.Is(buf[0].Err, hwErr) {
		t.Fatalf("failed completion: n=%d err=%v", n, buf[0].Err)
	}

	postErr := errors.New("nak")
	dev.FailNextPost(postErr)
	if err := dev.Post(0, dct.OpDescriptor{Token: 2}); !errors.Is(err, postErr) {
		t.Fatalf("post: %v want injected error", err)
	}
	if err := dev.Post(0, dct.OpDescriptor{Token: 3}); err != nil {
		t.Fatalf("post after injected failure: %v", err)
	}
}
