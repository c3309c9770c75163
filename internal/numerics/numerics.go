// Package numerics holds the small lookup tables shared by the codec and
// the channel: DLC<->length, bit-rate index selectors and the BTR0/BTR1
// custom bit-timing command. Serial baud-rate codes are not included. Grounded on the dlc_table/LEN2DLC idiom in the original
// CANAPI/can_msg.c and on the CiA/CANopen nominal speed list.
package numerics

import "fmt"

// dlcToLen mirrors CAN Classic's identity mapping (DLC 0..8 -> 0..8 bytes).
// CAN FD's non-linear table (dlc 9..15 -> 12..64 bytes) does not apply: this
// driver carries Classical CAN only.
var dlcToLen = [9]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8}

// DLCToLen returns the payload length in bytes for a raw DLC value. dlc
// values above 8 saturate at 8, since Classical CAN's DLC is effectively
// 0..8.
func DLCToLen(dlc uint8) uint8 {
	if int(dlc) >= len(dlcToLen) {
		return 8
	}
	return dlcToLen[dlc]
}

// LenToDLC returns the DLC for a payload length (0..8); lengths above 8 are
// rejected by the caller before reaching here, so this saturates defensively.
func LenToDLC(length int) uint8 {
	if length > MaxDataLen {
		return MaxDataLen
	}
	if length < 0 {
		return 0
	}
	return uint8(length)
}

// MaxDataLen is CAN Classic's maximum payload length.
const MaxDataLen = 8

// BitrateIndex selects one of the nine predefined CiA/CANopen speeds.
type BitrateIndex int

const (
	Bitrate1M BitrateIndex = iota
	Bitrate800K
	Bitrate500K
	Bitrate250K
	Bitrate125K
	Bitrate100K
	Bitrate50K
	Bitrate20K
	Bitrate10K
)

// bitrateTable maps a BitrateIndex to its SLCAN "S<n>" selector digit and the
// nominal speed in bits/second, carried for logging/diagnostics only — the
// device, not this driver, performs the actual bit-timing.
var bitrateTable = map[BitrateIndex]struct {
	selector int
	nominal  int
}{
	Bitrate10K:  {0, 10000},
	Bitrate20K:  {1, 20000},
	Bitrate50K:  {2, 50000},
	Bitrate100K: {3, 100000},
	Bitrate125K: {4, 125000},
	Bitrate250K: {5, 250000},
	Bitrate500K: {6, 500000},
	Bitrate800K: {7, 800000},
	Bitrate1M:   {8, 1000000},
}

// errUnknownBitrate reports a BitrateIndex outside the nine predefined speeds.
var errUnknownBitrate = fmt.Errorf("numerics: unknown bitrate index")

// Selector returns the SLCAN "S<n>" selector digit (0..8) for idx.
func Selector(idx BitrateIndex) (int, error) {
	e, ok := bitrateTable[idx]
	if !ok {
		return 0, fmt.Errorf("%w: %d", errUnknownBitrate, idx)
	}
	return e.selector, nil
}

// Nominal returns the nominal bit-rate in bits/second for idx, for logging.
func Nominal(idx BitrateIndex) (int, error) {
	e, ok := bitrateTable[idx]
	if !ok {
		return 0, fmt.Errorf("%w: %d", errUnknownBitrate, idx)
	}
	return e.nominal, nil
}

// SetCommand formats the SLCAN "S<n>\r" command for idx.
func SetCommand(idx BitrateIndex) (string, error) {
	sel, err := Selector(idx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("S%d\r", sel), nil
}

// BTR holds a raw BTR0/BTR1 byte pair for the SLCAN "s" custom bit-timing
// command, used alongside the predefined BitrateIndex selectors.
type BTR struct {
	BTR0 byte
	BTR1 byte
}

// Command formats the SLCAN "s<BTR0><BTR1>\r" command.
func (b BTR) Command() string {
	return fmt.Sprintf("s%02X%02X\r", b.BTR0, b.BTR1)
}
