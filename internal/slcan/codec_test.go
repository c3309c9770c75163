package slcan

import (
	"bytes"
	"errors"
	"testing"

	"github.com/slcan-go/slcan/internal/frame"
)

func TestDecode_StandardDataFrame(t *testing.T) {
	c := NewCodec()
	d, n, err := c.Decode([]byte("t1238DEADBEEF01020304\r"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len("t1238DEADBEEF01020304\r") {
		t.Fatalf("consumed %d, want full line", n)
	}
	if !d.HasFrame {
		t.Fatal("expected a frame")
	}
	fr := d.Frame
	if fr.ID != 0x123 || fr.Ext || fr.RTR || fr.DLC != 8 {
		t.Fatalf("unexpected frame header: %+v", fr)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(fr.Payload(), want) {
		t.Fatalf("payload = % X, want % X", fr.Payload(), want)
	}
}

func TestDecode_ExtendedRTR(t *testing.T) {
	c := NewCodec()
	d, _, err := c.Decode([]byte("R1FFFFFFF0\r"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fr := d.Frame
	if fr.ID != 0x1FFFFFFF || !fr.Ext || !fr.RTR || fr.DLC != 0 {
		t.Fatalf("unexpected frame: %+v", fr)
	}
	if len(fr.Payload()) != 0 {
		t.Fatalf("rtr frame carries payload: % X", fr.Payload())
	}
}

func TestEncode_StandardDataFrame(t *testing.T) {
	fr, err := frame.New(0x7FF, false, false, []byte{0xAB, 0xCD})
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	got, err := Encode(fr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "t7FF2ABCD\r"
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncode_ExtendedRTR(t *testing.T) {
	fr, err := frame.New(0x1FFFFFFF, true, true, nil)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	got, err := Encode(fr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "R1FFFFFFF0\r"
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	fr, _ := frame.New(0x456, false, false, []byte{1, 2, 3})
	line, err := Encode(fr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	c := NewCodec()
	d, n, err := c.Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(line) {
		t.Fatalf("consumed %d, want %d", n, len(line))
	}
	if d.Frame.ID != fr.ID || d.Frame.DLC != fr.DLC || !bytes.Equal(d.Frame.Payload(), fr.Payload()) {
		t.Fatalf("round trip mismatch: got %+v want %+v", d.Frame, fr)
	}
}

func TestDecode_NeedMoreBytes(t *testing.T) {
	c := NewCodec()
	_, _, err := c.Decode([]byte("t1238DEADBEEF"))
	if !errors.Is(err, ErrNeedMoreBytes) {
		t.Fatalf("expected ErrNeedMoreBytes, got %v", err)
	}
}

func TestDecode_ErrorTerminatorReply(t *testing.T) {
	c := NewCodec()
	d, n, err := c.Decode([]byte("t123\a"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len("t123\a") {
		t.Fatalf("consumed %d, want %d", n, len("t123\a"))
	}
	if d.Reply.Kind != ReplyError {
		t.Fatalf("expected ReplyError, got %v", d.Reply.Kind)
	}
}

func TestDecode_ShortOKReply(t *testing.T) {
	c := NewCodec()
	d, _, err := c.Decode([]byte("\r"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Reply.Kind != ReplyShortOK {
		t.Fatalf("expected ReplyShortOK, got %v", d.Reply.Kind)
	}
}

func TestDecode_StatusFlags(t *testing.T) {
	c := NewCodec()
	d, _, err := c.Decode([]byte("F0C\r"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Reply.Kind != ReplyStatusFlags || d.Reply.Flags != 0x0C {
		t.Fatalf("unexpected reply: %+v", d.Reply)
	}
}

func TestDecode_VersionReply(t *testing.T) {
	c := NewCodec()
	d, _, err := c.Decode([]byte("V1013\r"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Reply.Kind != ReplyText || d.Reply.Text != "1013" {
		t.Fatalf("unexpected reply: %+v", d.Reply)
	}
}

func TestDecode_TimestampWrapFold(t *testing.T) {
	c := NewCodec()
	d1, n1, err := c.Decode([]byte("t0010" + "EA60\r"))
	if err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if !d1.HasTS || d1.Timestamp != 0xEA60 {
		t.Fatalf("expected raw timestamp parsed, got %+v", d1)
	}
	_ = n1

	// second frame's counter has wrapped past 60000ms back to a small value
	d2, _, err := c.Decode([]byte("t0010" + "0032\r"))
	if err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if d2.Frame.Timestamp.Sec < d1.Frame.Timestamp.Sec {
		t.Fatalf("wrapped timestamp went backwards: %+v -> %+v", d1.Frame.Timestamp, d2.Frame.Timestamp)
	}
}

func TestDecode_MultipleLinesInOneBuffer(t *testing.T) {
	c := NewCodec()
	buf := []byte("t1000\rt20110A\r")
	d1, n1, err := c.Decode(buf)
	if err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if d1.Frame.ID != 0x100 {
		t.Fatalf("first frame id = %X", d1.Frame.ID)
	}
	d2, _, err := c.Decode(buf[n1:])
	if err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if d2.Frame.ID != 0x201 || len(d2.Frame.Payload()) != 1 || d2.Frame.Payload()[0] != 0x0A {
		t.Fatalf("second frame = %+v", d2.Frame)
	}
}

func TestEncode_RejectsOversizedDLC(t *testing.T) {
	fr := frame.Frame{ID: 1, DLC: 9}
	if _, err := Encode(fr); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}
