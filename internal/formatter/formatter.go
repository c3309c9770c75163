package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/slcan-go/slcan/internal/frame"
)

// Formatter renders frames under a Config. It carries no I/O state; the
// only mutable field is the zero/relative timestamp reference, which is
// why Formatter is a value a caller owns and configures once, rather than
// a global singleton.
type Formatter struct {
	cfg           Config
	channelNumber int

	haveLast  bool
	lastStamp frame.Timestamp
}

// New returns a Formatter under cfg.
func New(cfg Config) *Formatter {
	return &Formatter{cfg: cfg}
}

// Config returns the formatter's current configuration by value.
func (f *Formatter) Config() Config {
	return f.cfg
}

// SetConfig replaces the whole configuration in one step, for callers that
// build a Config with the setters and then hand it to an existing
// Formatter instead of constructing a fresh one.
func (f *Formatter) SetConfig(cfg Config) {
	f.cfg = cfg
}

// SetChannelNumber sets the value rendered in the optional channel column;
// it has no enumerated domain to validate so it always succeeds.
func (f *Formatter) SetChannelNumber(n int) bool {
	f.channelNumber = n
	return true
}

func (f *Formatter) sep() string {
	if f.cfg.Separator == SeparatorTabs {
		return "\t"
	}
	return "  "
}

func (f *Formatter) tab1() string {
	if f.cfg.Separator == SeparatorTabs {
		return "\t"
	}
	return " "
}

// Format renders fr with counter as a received-message line: prompt,
// counter, timestamp, channel, identifier, flags, DLC and data, each
// omitted when its Config toggle is off.
func (f *Formatter) Format(fr frame.Frame, counter uint64) string {
	var b strings.Builder

	if f.cfg.RXPrompt != "" {
		b.WriteString(f.cfg.RXPrompt)
		b.WriteString(f.tab1())
	}
	if f.cfg.Counter {
		if f.cfg.Separator == SeparatorTabs {
			fmt.Fprintf(&b, "%d\t", counter)
		} else {
			fmt.Fprintf(&b, "%-7d  ", counter)
		}
	}

	b.WriteString(f.FormatTime(fr.Timestamp))
	b.WriteString(f.sep())

	if f.cfg.Channel {
		if f.cfg.Separator == SeparatorTabs {
			fmt.Fprintf(&b, "%d\t", f.channelNumber)
		} else {
			fmt.Fprintf(&b, "%-2d  ", f.channelNumber)
		}
	}

	b.WriteString(f.formatID(fr))
	b.WriteString(f.sep())

	if f.cfg.Flags {
		// FormatFlags's standalone contract always returns two columns
		// (base letter, then R or a blank RTR placeholder). Inline here,
		// the blank placeholder and the field separator would otherwise
		// both render as spaces, widening the gap before the DLC to two
		// characters instead of the canonical one.
		b.WriteString(strings.TrimRight(f.FormatFlags(fr), " "))
		b.WriteString(f.tab1())
	}
	b.WriteString(f.formatDLC(fr))

	if fr.DLC != 0 && !fr.RTR {
		b.WriteString(f.sep())
		b.WriteString(f.formatData(fr, b.Len()))
	}

	if f.cfg.EndOfLine {
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTx is Format's sent-message counterpart: it prefixes tx_prompt
// instead of rx_prompt, mirroring the original formatter's direction
// parameter.
func (f *Formatter) FormatTx(fr frame.Frame, counter uint64) string {
	saved := f.cfg.RXPrompt
	f.cfg.RXPrompt = f.cfg.TXPrompt
	defer func() { f.cfg.RXPrompt = saved }()
	return f.Format(fr, counter)
}

// diffTime resolves the (sec, nsec) pair actually rendered for ts, per the
// configured TimestampMode.
func (f *Formatter) diffTime(ts frame.Timestamp) (int64, int64) {
	if f.cfg.TimeStamp == TimestampAbsolute {
		return ts.Sec, ts.NSec
	}
	if !f.haveLast {
		f.lastStamp = ts
		f.haveLast = true
	}
	sec := ts.Sec - f.lastStamp.Sec
	nsec := ts.NSec - f.lastStamp.NSec
	if nsec < 0 {
		sec--
		nsec += 1e9
	}
	if sec < 0 {
		sec, nsec = 0, 0
	}
	if f.cfg.TimeStamp == TimestampRelative {
		f.lastStamp = ts
	}
	return sec, nsec
}

// FormatTime renders ts alone, under the current time-stamp/time-format
// options — the standalone accessor the original exposes for partial
// (e.g. single UI column) rendering.
func (f *Formatter) FormatTime(ts frame.Timestamp) string {
	sec, nsec := f.diffTime(ts)

	switch f.cfg.TimeFormat {
	case TimeHHMMSS:
		var clock time.Time
		if f.cfg.TimeStamp == TimestampAbsolute {
			clock = time.Unix(sec, 0).Local()
		} else {
			clock = time.Unix(sec, 0).UTC()
		}
		hhmmss := clock.Format("15:04:05")
		if f.cfg.TimeUsec {
			return fmt.Sprintf("%s.%06d", hhmmss, nsec/1000)
		}
		return fmt.Sprintf("%s.%04d", hhmmss, nsec/100000)
	case TimeFractionalDays:
		if !f.cfg.TimeUsec {
			nsec = ((nsec + 500000) / 1000000) * 1000000
		}
		djd := float64(sec)/86400 + float64(nsec)/86400000000000
		if f.cfg.TimeUsec {
			return fmt.Sprintf("%1.12f", djd)
		}
		return fmt.Sprintf("%1.9f", djd)
	case TimeSeconds:
		fallthrough
	default:
		if f.cfg.TimeUsec {
			return fmt.Sprintf("%d.%06d", sec, nsec/1000)
		}
		return fmt.Sprintf("%d.%04d", sec, nsec/100000)
	}
}

// FormatID renders fr's identifier alone, under the current id_base/
// id_xtd options.
func (f *Formatter) FormatID(fr frame.Frame) string {
	return f.formatID(fr)
}

func (f *Formatter) formatID(fr frame.Frame) string {
	switch f.cfg.IDBase {
	case BaseDec:
		if !f.cfg.IDXtd {
			return fmt.Sprintf("%-4d", fr.ID)
		}
		return fmt.Sprintf("%-9d", fr.ID)
	case BaseOct:
		if !f.cfg.IDXtd {
			return fmt.Sprintf("%04o", fr.ID)
		}
		return fmt.Sprintf("%010o", fr.ID)
	case BaseHex:
		fallthrough
	default:
		if !f.cfg.IDXtd {
			return fmt.Sprintf("%03X", fr.ID)
		}
		return fmt.Sprintf("%08X", fr.ID)
	}
}

// FormatFlags renders fr's flag letters alone: S or X for standard/
// extended, then R for RTR or a blank for data frames. Classical CAN
// carries no FD/BRS/ESI bits, so those columns never appear.
func (f *Formatter) FormatFlags(fr frame.Frame) string {
	var b strings.Builder
	if fr.Ext {
		b.WriteString("X")
	} else {
		b.WriteString("S")
	}
	if fr.RTR {
		b.WriteString("R")
	} else {
		b.WriteString(" ")
	}
	return b.String()
}

func (f *Formatter) formatDLC(fr frame.Frame) string {
	length := dlcToLength(fr.DLC)
	var pre, post string
	switch f.cfg.DLCBrackets {
	case BracketsParen:
		pre, post = "(", ")"
	case BracketsSquare:
		pre, post = "[", "]"
	}
	switch f.cfg.DLCBase {
	case BaseDec:
		if pre != "" {
			return fmt.Sprintf("%s%d%s", pre, length, post)
		}
		return fmt.Sprintf("%d", length)
	case BaseOct:
		if pre != "" {
			return fmt.Sprintf("%s%02o%s", pre, length, post)
		}
		return fmt.Sprintf("%02o", length)
	case BaseHex:
		fallthrough
	default:
		if pre != "" {
			return fmt.Sprintf("%s%X%s", pre, length, post)
		}
		return fmt.Sprintf("%X", length)
	}
}

func dlcToLength(dlc uint8) int {
	if dlc > 8 {
		return 8
	}
	return int(dlc)
}

func (f *Formatter) formatDataByte(v byte) string {
	switch f.cfg.DataBase {
	case BaseDec:
		return fmt.Sprintf("%-3d", v)
	case BaseOct:
		return fmt.Sprintf("%03o", v)
	case BaseHex:
		fallthrough
	default:
		return fmt.Sprintf("%02X", v)
	}
}

func (f *Formatter) formatFillByte() string {
	if f.cfg.DataBase == BaseHex {
		return "  "
	}
	return "   "
}

func formatDataASCII(v byte, subst byte) string {
	if v >= 0x20 && v < 0x7F {
		return string(v)
	}
	return string(subst)
}

// formatData renders fr's payload, wrapping every Wraparound bytes onto a
// continuation line indented to column indent, plus an optional trailing
// printable-ASCII column when Config.ASCII is set.
func (f *Formatter) formatData(fr frame.Frame, indent int) string {
	length := int(fr.Len)
	wrap := f.cfg.Wraparound.width()

	var b strings.Builder
	col := 0
	j := 0
	i := 0
	for ; i < length; i++ {
		b.WriteString(f.formatDataByte(fr.Data[i]))
		if i+1 < length {
			if col+1 == wrap {
				if f.cfg.ASCII {
					b.WriteString(f.sep())
					for ; col < wrap; j, col = j+1, col+1 {
						b.WriteString(formatDataASCII(fr.Data[j], f.cfg.ASCIISubst))
					}
				}
				b.WriteString("\n")
				if f.cfg.Separator != SeparatorTabs {
					b.WriteString(strings.Repeat(" ", indent))
				} else {
					b.WriteString("\t")
				}
				col = 0
			} else {
				b.WriteString(" ")
				col++
			}
		} else {
			col++
		}
	}
	if f.cfg.ASCII {
		if col < wrap && i != 0 {
			b.WriteString(" ")
			for ; col < wrap; col++ {
				b.WriteString(f.formatFillByte())
				if col+1 != wrap {
					b.WriteString(" ")
				}
			}
		}
		b.WriteString(f.sep())
		for ; j < length; j++ {
			b.WriteString(formatDataASCII(fr.Data[j], f.cfg.ASCIISubst))
		}
	}
	return b.String()
}

// FormatData renders fr's payload alone, without the trailing ASCII
// column — the standalone accessor mirroring msg_format_data.
func (f *Formatter) FormatData(fr frame.Frame) string {
	if fr.Len == 0 {
		return ""
	}
	saved := f.cfg.ASCII
	f.cfg.ASCII = false
	defer func() { f.cfg.ASCII = saved }()
	return f.formatData(fr, 0)
}

// FormatASCII renders fr's payload as printable ASCII alone, wrapping
// every Wraparound bytes onto a new line — the standalone accessor
// mirroring msg_format_ascii.
func (f *Formatter) FormatASCII(fr frame.Frame) string {
	length := int(fr.Len)
	if length == 0 {
		return ""
	}
	wrap := f.cfg.Wraparound.width()
	var b strings.Builder
	col := 0
	for i := 0; i < length; i++ {
		b.WriteString(formatDataASCII(fr.Data[i], f.cfg.ASCIISubst))
		if i+1 < length {
			if col+1 == wrap {
				b.WriteString("\n")
				col = 0
			} else {
				b.WriteString(" ")
				col++
			}
		}
	}
	return b.String()
}
