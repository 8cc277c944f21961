package dct

import "testing"

func TestInflightWindowAddRetire(t *testing.T) {
	w := newInflightWindow(3)
	if w.full() {
		t.Fatal("empty window reported full")
	}
	w.add(10)
	w.add(11)
	w.add(12)
	if !w.full() {
		t.Fatal("window at budget not reported full")
	}
	for want := uint64(10); want <= 12; want++ {
		head, ok := w.head()
		if !ok || head != want {
			t.Fatalf("unexpected head: got (%d, %v) want (%d, true)", head, ok, want)
		}
		got, ok := w.retire()
		if !ok || got != want {
			t.Fatalf("unexpected retire: got (%d, %v) want (%d, true)", got, ok, want)
		}
	}
	if _, ok := w.retire(); ok {
		t.Fatal("retire on empty window succeeded")
	}
}

func TestInflightWindowWraps(t *testing.T) {
	w := newInflightWindow(2)
	token := uint64(1)
	for round := 0; round < 5; round++ {
		w.add(token)
		w.add(token + 1)
		if got, _ := w.retire(); got != token {
			t.Fatalf("round %d: retired %d want %d", round, got, token)
		}
		if got, _ := w.retire(); got != token+1 {
			t.Fatalf("round %d: retired %d want %d", round, got, token+1)
		}
		token += 2
	}
	if w.outstanding() != 0 {
		t.Fatalf("outstanding after drain: %d", w.outstanding())
	}
}

func TestInflightWindowFullPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("add on full window did not panic")
		}
	}()
	w := newInflightWindow(1)
	w.add(1)
	w.add(2)
}
