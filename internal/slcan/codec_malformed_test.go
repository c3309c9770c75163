package slcan

import (
	"errors"
	"testing"
)

func TestDecode_MalformedRejectsUnknownLeadByte(t *testing.T) {
	c := NewCodec()
	if _, _, err := c.Decode([]byte("Q1234\r")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_MalformedShortIDField(t *testing.T) {
	c := NewCodec()
	if _, _, err := c.Decode([]byte("t12\r")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_MalformedBadHexInID(t *testing.T) {
	c := NewCodec()
	if _, _, err := c.Decode([]byte("tZZZ8DEADBEEF01020304\r")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_MalformedTruncatedDataBytes(t *testing.T) {
	c := NewCodec()
	if _, _, err := c.Decode([]byte("t1238DEAD\r")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_MalformedIDOutOfRangeForStandard(t *testing.T) {
	c := NewCodec()
	// 0x800 exceeds the 11-bit standard identifier range.
	if _, _, err := c.Decode([]byte("t8000\r")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecode_ResyncsAfterMalformedLine(t *testing.T) {
	c := NewCodec()
	buf := []byte("Qbogus\rt1000\r")
	_, n1, err := c.Decode(buf)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed on first line, got %v", err)
	}
	d, _, err := c.Decode(buf[n1:])
	if err != nil {
		t.Fatalf("Decode after resync: %v", err)
	}
	if d.Frame.ID != 0x100 {
		t.Fatalf("expected resynced frame id 0x100, got %X", d.Frame.ID)
	}
}

func TestDecode_EmptyBufferNeedsMoreBytes(t *testing.T) {
	c := NewCodec()
	if _, _, err := c.Decode(nil); !errors.Is(err, ErrNeedMoreBytes) {
		t.Fatalf("expected ErrNeedMoreBytes, got %v", err)
	}
}
