// Package frame defines the canonical CAN message exchanged between the
// SLCAN codec, the channel state machine and the receive queue.
package frame

import (
	"errors"
	"fmt"
)

// Identifier limits for CAN Classic (SLCAN carries no CAN FD payloads).
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
	MaxDLC        = 8
	MaxDataLen    = 8
)

// ErrInvalidFrame reports a frame that violates the data-model invariants:
// rtr/data mismatch, id out of range, or dlc out of range.
var ErrInvalidFrame = errors.New("frame: invalid")

// Timestamp is a monotonic (seconds, nanoseconds) pair rather than a single
// duration, so the codec's wrap-folding arithmetic stays exact.
type Timestamp struct {
	Sec  int64
	NSec int64
}

// Frame is the canonical CAN message.
type Frame struct {
	ID        uint32
	Ext       bool
	RTR       bool
	Err       bool
	DLC       uint8
	Data      [MaxDataLen]byte
	Len       uint8 // valid data bytes, Len == min(DLC, MaxDataLen) for non-RTR
	Timestamp Timestamp
}

// MaxID returns the highest legal identifier value for the frame's Ext flag.
func MaxID(ext bool) uint32 {
	if ext {
		return MaxExtendedID
	}
	return MaxStandardID
}

// New builds a Frame from an identifier, flags and payload, validating id
// range and payload length. DLC is len(data) (0 for RTR frames); a payload
// longer than MaxDataLen is rejected.
func New(id uint32, ext, rtr bool, data []byte) (Frame, error) {
	var f Frame
	if id > MaxID(ext) {
		return f, fmt.Errorf("%w: id 0x%X exceeds range for ext=%v", ErrInvalidFrame, id, ext)
	}
	if len(data) > MaxDataLen {
		return f, fmt.Errorf("%w: data length %d exceeds %d", ErrInvalidFrame, len(data), MaxDataLen)
	}
	f.ID = id
	f.Ext = ext
	f.RTR = rtr
	f.DLC = uint8(len(data))
	if rtr {
		f.DLC = 0
		f.Len = 0
	} else {
		copy(f.Data[:], data)
		f.Len = uint8(len(data))
	}
	return f, nil
}

// Validate checks id range, dlc range and rtr/data consistency for any
// Frame, whether constructed by New, decoded by the codec, or assembled by
// a caller.
func (f Frame) Validate() error {
	if f.ID > MaxID(f.Ext) {
		return fmt.Errorf("%w: id 0x%X exceeds range for ext=%v", ErrInvalidFrame, f.ID, f.Ext)
	}
	if f.DLC > 15 {
		return fmt.Errorf("%w: dlc %d out of range", ErrInvalidFrame, f.DLC)
	}
	if f.RTR && f.Len != 0 {
		return fmt.Errorf("%w: rtr frame carries %d data bytes", ErrInvalidFrame, f.Len)
	}
	wantLen := int(f.DLC)
	if wantLen > MaxDataLen {
		wantLen = MaxDataLen
	}
	if !f.RTR && int(f.Len) != wantLen {
		return fmt.Errorf("%w: len %d does not match dlc %d", ErrInvalidFrame, f.Len, f.DLC)
	}
	return nil
}

// Payload returns the valid data bytes (empty for RTR frames).
func (f Frame) Payload() []byte {
	return f.Data[:f.Len]
}
