package waitbuf

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSlot_PutGet_RoundTrip(t *testing.T) {
	s, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []byte("frame!")
	if _, err := s.Put(want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got := make([]byte, 8)
	n, err := s.Get(got, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got[:n]) != string(want) {
		t.Fatalf("got %q want %q", got[:n], want)
	}
}

func TestSlot_Put_TruncatesToCapacity(t *testing.T) {
	s, _ := New(3)
	n, err := s.Put([]byte("abcdef"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected truncation to 3 bytes, got %d", n)
	}
}

func TestSlot_Get_EmptyPoll(t *testing.T) {
	s, _ := New(4)
	buf := make([]byte, 4)
	if _, err := s.Get(buf, 0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestSlot_Get_Timeout(t *testing.T) {
	s, _ := New(4)
	buf := make([]byte, 4)
	start := time.Now()
	_, err := s.Get(buf, 30*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatalf("returned too early: %v", time.Since(start))
	}
}

func TestSlot_ConcurrentPut_OneWinsOneBusy(t *testing.T) {
	s, _ := New(4)
	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Put([]byte{1, 2, 3, 4})
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	var ok, busy int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || busy != 1 {
		t.Fatalf("expected exactly one success and one busy, got ok=%d busy=%d", ok, busy)
	}
}

func TestSlot_Signal_UnblocksWithEmpty(t *testing.T) {
	s, _ := New(4)
	buf := make([]byte, 4)
	done := make(chan error, 1)
	go func() {
		_, err := s.Get(buf, -1)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Signal()
	select {
	case err := <-done:
		if !errors.Is(err, ErrEmpty) {
			t.Fatalf("expected ErrEmpty after signal, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Signal")
	}
}

func TestSlot_Signal_ThenNormalOperation(t *testing.T) {
	s, _ := New(4)
	s.Signal()
	if _, err := s.Put([]byte{9}); err != nil {
		t.Fatalf("Put after Signal: %v", err)
	}
	buf := make([]byte, 4)
	n, err := s.Get(buf, 0)
	if err != nil || n != 1 || buf[0] != 9 {
		t.Fatalf("unexpected post-signal get: n=%d err=%v buf=%v", n, err, buf[:n])
	}
}

func TestSlot_Clear_DropsWithoutWaking(t *testing.T) {
	s, _ := New(4)
	_, _ = s.Put([]byte{1, 2})
	if n := s.Clear(); n != 2 {
		t.Fatalf("expected Clear to report 2 bytes removed, got %d", n)
	}
	buf := make([]byte, 4)
	if _, err := s.Get(buf, 0); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected empty after Clear, got %v", err)
	}
}

func TestNew_RejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
