package ingest

import (
	"errors"
	"reflect"
	"testing"
)

func TestQueue_FIFOAcrossGrowth(t *testing.T) {
	q := NewQueue[int](2)
	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if got := q.DrainTo(2); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("DrainTo(2) = %v, want [0 1]", got)
	}
	// Wrap the ring, then force another growth with head != 0.
	for i := 5; i < 12; i++ {
		q.Push(i)
	}
	want := []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if got := q.DrainTo(100); !reflect.DeepEqual(got, want) {
		t.Errorf("DrainTo(100) = %v, want %v", got, want)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_DrainCap(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 12; i++ {
		q.Push(i)
	}

	first := q.DrainTo(10)
	if len(first) != 10 || first[0] != 0 || first[9] != 9 {
		t.Errorf("first drain = %v, want 0..9", first)
	}
	if q.Len() != 2 {
		t.Errorf("Len() after capped drain = %d, want 2", q.Len())
	}
	if rest := q.DrainTo(10); !reflect.DeepEqual(rest, []int{10, 11}) {
		t.Errorf("second drain = %v, want [10 11]", rest)
	}
}

func TestQueue_EmptyAndZeroMax(t *testing.T) {
	q := NewQueue[string](0)
	if got := q.DrainTo(10); got != nil {
		t.Errorf("DrainTo on empty = %v, want nil", got)
	}
	q.Push("a")
	if got := q.DrainTo(0); got != nil {
		t.Errorf("DrainTo(0) = %v, want nil", got)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](1)
	q.Push(1)
	q.Close()

	if err := q.Push(2); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after Close = %v, want ErrClosed", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", q.Len())
	}
	if pushed, drained := q.Stats(); pushed != 1 || drained != 0 {
		t.Errorf("Stats() = %d, %d; want 1, 0", pushed, drained)
	}
}
