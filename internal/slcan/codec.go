// Package slcan implements the Lawicel/CANable ASCII line protocol codec:
// bidirectional translation between SLCAN wire bytes and frame.Frame plus
// its command/reply vocabulary. The codec holds no I/O state; line framing
// scans the accumulated buffer for the next '\r'/'\a' terminator, and a
// malformed line is consumed whole, so the caller resyncs at the start of
// the following line.
package slcan

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/slcan-go/slcan/internal/frame"
)

// Protocol selects the wire dialect. CANable's divergence from Lawicel is
// not fully documented upstream; the driver defaults to Lawicel and the
// CANable branch is a reserved, currently identical, extension point.
type Protocol int

const (
	ProtocolLawicel Protocol = iota
	ProtocolCANable
)

// ErrInvalidFrame is returned by Encode when the frame cannot be
// represented on the wire.
var ErrInvalidFrame = errors.New("slcan: invalid frame")

// ErrNeedMoreBytes indicates the buffer holds a truncated line; the caller
// should append more bytes and retry (the codec holds no hidden
// partial-line state beyond the timestamp reference).
var ErrNeedMoreBytes = errors.New("slcan: need more bytes")

// ErrMalformed marks a line that does not match any known grammar rule.
var ErrMalformed = errors.New("slcan: malformed line")

// ReplyKind tags a non-frame decode result.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyShortOK
	ReplyError
	ReplyText
	ReplyStatusFlags
)

// Reply carries a non-frame decode result: an OK/error acknowledgement, a
// text reply (version/serial queries), or a status-flags byte (the "F"
// query response).
type Reply struct {
	Kind  ReplyKind
	Text  string
	Flags uint8
}

// Decoded is the result of decoding exactly one framed line: either a
// frame (HasFrame set) or a Reply.
type Decoded struct {
	Frame     frame.Frame
	HasFrame  bool
	Reply     Reply
	Timestamp uint16 // raw 4-hex-digit millisecond field, if present
	HasTS     bool
}

// Codec is stateless except for the timestamp wrap reference, so a single
// instance may only be used by one reader stream at a time; Channel owns
// exactly one Codec per serial port.
type Codec struct {
	Protocol Protocol

	haveLast bool
	lastMS   uint16
	refSec   int64
	refNSec  int64
}

// NewCodec returns a Codec defaulting to the Lawicel dialect.
func NewCodec() *Codec {
	return &Codec{Protocol: ProtocolLawicel}
}

// Encode renders fr as the shortest legal SLCAN line, terminated with CR.
func Encode(fr frame.Frame) ([]byte, error) {
	if fr.DLC > frame.MaxDLC {
		return nil, fmt.Errorf("%w: dlc %d exceeds %d", ErrInvalidFrame, fr.DLC, frame.MaxDLC)
	}
	if fr.ID > frame.MaxID(fr.Ext) {
		return nil, fmt.Errorf("%w: id 0x%X exceeds range for ext=%v", ErrInvalidFrame, fr.ID, fr.Ext)
	}
	var b bytes.Buffer
	switch {
	case fr.Ext && fr.RTR:
		fmt.Fprintf(&b, "R%08X%X", fr.ID, fr.DLC)
	case fr.Ext && !fr.RTR:
		fmt.Fprintf(&b, "T%08X%X", fr.ID, fr.DLC)
	case !fr.Ext && fr.RTR:
		fmt.Fprintf(&b, "r%03X%X", fr.ID, fr.DLC)
	default:
		fmt.Fprintf(&b, "t%03X%X", fr.ID, fr.DLC)
	}
	if !fr.RTR {
		for _, by := range fr.Payload() {
			fmt.Fprintf(&b, "%02X", by)
		}
	}
	b.WriteByte('\r')
	return b.Bytes(), nil
}

// split locates the first '\r' or '\a' terminator in buf, returning the
// line (without terminator), the terminator byte, and the number of bytes
// consumed including the terminator. ok is false if no terminator is
// present yet (ErrNeedMoreBytes territory).
func split(buf []byte) (line []byte, term byte, consumed int, ok bool) {
	for i, c := range buf {
		if c == '\r' || c == '\a' {
			return buf[:i], c, i + 1, true
		}
	}
	return nil, 0, 0, false
}

// Decode consumes exactly one framed line from the front of acc, returning
// a Decoded result and the number of bytes consumed. It returns
// ErrNeedMoreBytes (consumed==0) if acc holds no complete line yet.
func (c *Codec) Decode(acc []byte) (Decoded, int, error) {
	line, term, consumed, ok := split(acc)
	if !ok {
		return Decoded{}, 0, ErrNeedMoreBytes
	}
	if term == '\a' {
		return Decoded{Reply: Reply{Kind: ReplyError}}, consumed, nil
	}
	if len(line) == 0 {
		return Decoded{Reply: Reply{Kind: ReplyShortOK}}, consumed, nil
	}
	d, err := c.decodeLine(line)
	return d, consumed, err
}

func (c *Codec) decodeLine(line []byte) (Decoded, error) {
	switch line[0] {
	case 't', 'T', 'r', 'R':
		return c.decodeDataOrRTR(line)
	case 'F':
		return c.decodeStatusFlags(line)
	case 'V', 'v', 'N':
		return Decoded{Reply: Reply{Kind: ReplyText, Text: string(line[1:])}}, nil
	case 'z', 'Z':
		if len(line) == 1 {
			return Decoded{Reply: Reply{Kind: ReplyShortOK}}, nil
		}
		return Decoded{Reply: Reply{Kind: ReplyText, Text: string(line)}}, nil
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
}

func (c *Codec) decodeStatusFlags(line []byte) (Decoded, error) {
	if len(line) != 3 {
		return Decoded{}, fmt.Errorf("%w: bad status flags line %q", ErrMalformed, line)
	}
	v, err := parseHex(line[1:3])
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Decoded{Reply: Reply{Kind: ReplyStatusFlags, Flags: uint8(v)}}, nil
}

// decodeDataOrRTR parses the t/T/r/R frame grammar, including an optional
// trailing 4-hex-digit timestamp field.
func (c *Codec) decodeDataOrRTR(line []byte) (Decoded, error) {
	ext := line[0] == 'T' || line[0] == 'R'
	rtr := line[0] == 'r' || line[0] == 'R'
	idLen := 3
	if ext {
		idLen = 8
	}
	if len(line) < 1+idLen+1 {
		return Decoded{}, fmt.Errorf("%w: short frame line %q", ErrMalformed, line)
	}
	id, err := parseHex(line[1 : 1+idLen])
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: bad id: %v", ErrMalformed, err)
	}
	dlcVal, err := parseHex(line[1+idLen : 1+idLen+1])
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: bad dlc: %v", ErrMalformed, err)
	}
	dlc := uint8(dlcVal)
	pos := 1 + idLen + 1
	var data []byte
	if !rtr {
		n := int(dlc)
		if n > frame.MaxDataLen {
			n = frame.MaxDataLen
		}
		need := pos + 2*n
		if len(line) < need {
			return Decoded{}, fmt.Errorf("%w: short data in %q", ErrMalformed, line)
		}
		data = make([]byte, n)
		for i := 0; i < n; i++ {
			v, err := parseHex(line[pos+2*i : pos+2*i+2])
			if err != nil {
				return Decoded{}, fmt.Errorf("%w: bad data byte: %v", ErrMalformed, err)
			}
			data[i] = byte(v)
		}
		pos += 2 * n
	}
	if uint32(id) > frame.MaxID(ext) {
		return Decoded{}, fmt.Errorf("%w: id 0x%X exceeds range for ext=%v", ErrMalformed, id, ext)
	}
	fr := frame.Frame{ID: uint32(id), Ext: ext, RTR: rtr, DLC: dlc}
	if !rtr {
		copy(fr.Data[:], data)
		fr.Len = uint8(len(data))
	}

	d := Decoded{Frame: fr, HasFrame: true}
	if rest := line[pos:]; len(rest) == 4 {
		ms, err := parseHex(rest)
		if err == nil {
			d.Timestamp = uint16(ms)
			d.HasTS = true
			d.Frame.Timestamp = c.foldTimestamp(uint16(ms))
		}
	}
	return d, nil
}

// foldTimestamp folds a trailing millisecond counter (0..59999) into a
// monotonic nanosecond timestamp using the last-seen value as a reference,
// assuming a single 60000ms wrap per observation. A device silent for 60s
// or more between frames will under-count wraps; this is a known
// limitation of a pure counter-delta heuristic.
func (c *Codec) foldTimestamp(ms uint16) frame.Timestamp {
	const wrapMS = 60000
	if !c.haveLast {
		c.haveLast = true
		c.lastMS = ms
		c.refSec = int64(ms) / 1000
		c.refNSec = int64(ms%1000) * int64(1e6)
		return frame.Timestamp{Sec: c.refSec, NSec: c.refNSec}
	}
	deltaMS := int64(ms) - int64(c.lastMS)
	if deltaMS < 0 {
		deltaMS += wrapMS
	}
	totalNSec := c.refNSec + deltaMS*int64(1e6)
	sec := c.refSec + totalNSec/int64(1e9)
	nsec := totalNSec % int64(1e9)
	c.refSec, c.refNSec = sec, nsec
	c.lastMS = ms
	return frame.Timestamp{Sec: sec, NSec: nsec}
}

func parseHex(b []byte) (int64, error) {
	var v int64
	for _, c := range b {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q", c)
		}
		v = v*16 + d
	}
	return v, nil
}
