package channel

import "errors"

// Sentinel errors classify every caller-visible failure. Call sites use
// errors.Is for classification.
var (
	ErrIllegalArgument = errors.New("channel: illegal argument")
	ErrWrongState      = errors.New("channel: wrong state")
	ErrIllegalFrame    = errors.New("channel: illegal frame")
	ErrPortError       = errors.New("channel: port error")
	ErrProtocolError   = errors.New("channel: protocol error")
	ErrTransmitterBusy = errors.New("channel: transmitter busy")
	ErrTimeout         = errors.New("channel: timeout")
	ErrReceiverEmpty   = errors.New("channel: receiver empty")
	ErrCancelled       = errors.New("channel: cancelled")
	ErrAlreadyInit     = errors.New("channel: already initialized")
	ErrIllegalMode     = errors.New("channel: illegal opmode")
)
