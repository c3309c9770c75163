package rxqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/slcan-go/slcan/internal/frame"
)

func mk(id uint32) frame.Frame {
	fr, _ := frame.New(id, false, false, []byte{byte(id)})
	return fr
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := New(4)
	for i := uint32(1); i <= 3; i++ {
		q.Push(mk(i))
	}
	for i := uint32(1); i <= 3; i++ {
		fr, err := q.Pop(0)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if fr.ID != i {
			t.Fatalf("expected id %d, got %d", i, fr.ID)
		}
	}
}

func TestQueue_OverrunScenario(t *testing.T) {
	// capacity 4, five pushes before any pop: the fifth is dropped and the
	// overrun bit latches until an explicit clear.
	q := New(4)
	for i := uint32(1); i <= 5; i++ {
		q.Push(mk(i))
	}
	if !q.Overrun() {
		t.Fatal("expected overrun to latch after 5th push into capacity-4 queue")
	}
	for i := uint32(1); i <= 4; i++ {
		fr, err := q.Pop(0)
		if err != nil {
			t.Fatalf("Pop %d: %v", i, err)
		}
		if fr.ID != i {
			t.Fatalf("expected frames 1..4 in order, got %d at position %d", fr.ID, i)
		}
	}
	if _, err := q.Pop(0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty after draining, got %v", err)
	}
	if !q.Overrun() {
		t.Fatal("overrun bit should remain latched until explicit clear")
	}
	q.ClearOverrun()
	if q.Overrun() {
		t.Fatal("overrun bit should clear after ClearOverrun")
	}
}

func TestQueue_PopTimeout(t *testing.T) {
	q := New(2)
	start := time.Now()
	if _, err := q.Pop(20 * time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("returned too early: %v", time.Since(start))
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New(2)
	done := make(chan frame.Frame, 1)
	go func() {
		fr, err := q.Pop(-1)
		if err != nil {
			t.Errorf("Pop: %v", err)
		}
		done <- fr
	}()
	time.Sleep(20 * time.Millisecond)
	q.Push(mk(42))
	select {
	case fr := <-done:
		if fr.ID != 42 {
			t.Fatalf("expected id 42, got %d", fr.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestQueue_Cancel_UnblocksEmpty(t *testing.T) {
	q := New(2)
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(-1)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrEmpty) {
			t.Fatalf("expected ErrEmpty after Cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Cancel")
	}
}
