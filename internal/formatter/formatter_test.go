package formatter

import (
	"testing"

	"github.com/slcan-go/slcan/internal/frame"
)

func scenarioFrame(t *testing.T) frame.Frame {
	t.Helper()
	fr, err := frame.New(0x123, false, false, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return fr
}

func TestFormat_ExactLine(t *testing.T) {
	cfg := Config{
		TimeStamp:   TimestampZero,
		TimeFormat:  TimeSeconds,
		TimeUsec:    false,
		IDBase:      BaseHex,
		DLCBase:     BaseDec,
		DataBase:    BaseHex,
		ASCII:       false,
		Flags:       true,
		Counter:     true,
		Separator:   SeparatorSpaces,
		EndOfLine:   false,
	}
	f := New(cfg)
	fr := scenarioFrame(t)

	got := f.Format(fr, 42)
	want := "42       0.0000  123  S 8  DE AD BE EF 01 02 03 04"
	if got != want {
		t.Fatalf("Format mismatch:\n got:  %q\n want: %q", got, want)
	}
}

func TestFormat_Idempotent(t *testing.T) {
	f := New(DefaultConfig())
	fr := scenarioFrame(t)
	a := f.Format(fr, 1)
	b := f.Format(fr, 1)
	if a != b {
		t.Fatalf("Format is not idempotent for identical inputs: %q vs %q", a, b)
	}
}

func TestFormat_RTRFrameOmitsData(t *testing.T) {
	fr, err := frame.New(0x200, false, true, nil)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	fr.DLC = 4 // RTR frames may still declare a requested length
	f := New(DefaultConfig())
	got := f.Format(fr, 0)
	if got == "" {
		t.Fatal("expected non-empty rendering")
	}
	// No data bytes and no ASCII column should be appended after the DLC.
	for _, want := range []string{"DE", "AD"} {
		if contains(got, want) {
			t.Fatalf("RTR line unexpectedly contains payload fragment %q: %q", want, got)
		}
	}
}

func TestFormat_ExtendedIDAndRTRFlags(t *testing.T) {
	fr, err := frame.New(0x1FFFFFFF, true, true, nil)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	f := New(DefaultConfig())
	flags := f.FormatFlags(fr)
	if flags != "XR" {
		t.Fatalf("FormatFlags = %q, want %q", flags, "XR")
	}
}

func TestFormat_DLCBrackets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetDLCBrackets(BracketsSquare)
	cfg.SetDLCBase(BaseHex)
	f := New(cfg)
	fr := scenarioFrame(t)
	if got := f.formatDLC(fr); got != "[8]" {
		t.Fatalf("formatDLC = %q, want %q", got, "[8]")
	}
}

func TestFormat_DecimalIDWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetIDBase(BaseDec)
	f := New(cfg)
	fr := scenarioFrame(t)
	if got := f.FormatID(fr); got != "291 " {
		t.Fatalf("FormatID = %q, want %q", got, "291 ")
	}
}

func TestFormat_IDXtdWidensField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetIDXtd(true)
	f := New(cfg)
	fr := scenarioFrame(t)
	if got := f.FormatID(fr); got != "00000123" {
		t.Fatalf("FormatID (xtd) = %q, want %q", got, "00000123")
	}
}

func TestFormat_ASCIIColumn(t *testing.T) {
	fr, err := frame.New(0x10, false, false, []byte("Hi!\x01"))
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	f := New(DefaultConfig())
	ascii := f.FormatASCII(fr)
	want := "H i ! ."
	if ascii != want {
		t.Fatalf("FormatASCII = %q, want %q", ascii, want)
	}
}

func TestFormat_RelativeTimestampAdvancesReference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetTimeStamp(TimestampRelative)
	f := New(cfg)

	first := frame.Timestamp{Sec: 10, NSec: 0}
	second := frame.Timestamp{Sec: 13, NSec: 0}

	if got := f.FormatTime(first); got != "0.0000" {
		t.Fatalf("first FormatTime = %q, want %q", got, "0.0000")
	}
	if got := f.FormatTime(second); got != "3.0000" {
		t.Fatalf("second FormatTime = %q, want %q", got, "3.0000")
	}
}

func TestFormat_ZeroTimestampKeepsFirstReference(t *testing.T) {
	f := New(DefaultConfig())
	first := frame.Timestamp{Sec: 5, NSec: 0}
	third := frame.Timestamp{Sec: 9, NSec: 0}

	_ = f.FormatTime(first)
	if got := f.FormatTime(third); got != "4.0000" {
		t.Fatalf("FormatTime after zero reference = %q, want %q", got, "4.0000")
	}
}

func TestConfig_SettersRejectOutOfDomain(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SetIDBase(NumberBase(99)) {
		t.Fatal("SetIDBase accepted an out-of-domain value")
	}
	if cfg.IDBase != BaseHex {
		t.Fatal("rejected SetIDBase mutated the config")
	}
	if cfg.SetRXPrompt("waytoolong") {
		t.Fatal("SetRXPrompt accepted a prompt longer than 6 bytes")
	}
	if cfg.SetASCIISubst(0x01) {
		t.Fatal("SetASCIISubst accepted a non-printable substitute")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
