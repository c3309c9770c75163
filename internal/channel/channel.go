// Package channel implements the SLCAN channel state machine: the public
// contract (initialize/start/reset/write/read/status/teardown) that owns
// the codec, one command-reply WaitableSlot, the reader task, and the
// receive queue.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slcan-go/slcan/internal/frame"
	"github.com/slcan-go/slcan/internal/metrics"
	"github.com/slcan-go/slcan/internal/numerics"
	"github.com/slcan-go/slcan/internal/rxqueue"
	"github.com/slcan-go/slcan/internal/serialport"
	"github.com/slcan-go/slcan/internal/slcan"
	"github.com/slcan-go/slcan/internal/waitbuf"
)

// State is one of the three legal channel states.
type State int

const (
	StateClosed State = iota
	StateInitialized
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// AllStates lists every state name, for metrics.SetChannelState's gauge
// reset pass.
var AllStates = []string{StateClosed.String(), StateInitialized.String(), StateRunning.String()}

// OpMode is a bitmask of channel operating-mode flags.
type OpMode uint8

const (
	OpModeMonitor OpMode = 1 << iota
	OpModeErrFrames
	OpModeNoXTD
	OpModeNoRTR
	OpModeShared
	// opModeFD marks a request for CAN FD behaviour. SLCAN carries
	// Classical CAN only, so initialize rejects this flag with
	// ErrIllegalMode; it is unexported because no supported feature ever
	// sets it.
	opModeFD
)

// SerialParams configures the underlying byte-stream connection.
type SerialParams struct {
	Baud        int
	ReadTimeout time.Duration
}

const commandSlotCapacity = 64

// openPort is a package-level test seam so unit tests can substitute a
// fake Port without touching a real OS device.
var openPort = serialport.Open

// Channel is the state machine and public contract of the driver.
type Channel struct {
	log            *slog.Logger
	metricsEnabled bool
	commandTimeout time.Duration
	rxCapacity     int

	mu        sync.Mutex // guards state, lastError, statusCache
	commandMu sync.Mutex // serializes write/start/set_filter and D access
	state     State
	opmode    OpMode
	lastError error

	statusCache     StatusByte
	statusCacheTime time.Time

	port       serialport.Port
	codec      *slcan.Codec
	cmdSlot    *waitbuf.Slot
	rxQueue    *rxqueue.Queue
	reader     *readerTask
	cancelFunc context.CancelFunc
}

// New constructs a Channel in the Closed state.
func New(opts ...Option) *Channel {
	c := &Channel{state: StateClosed}
	for _, o := range defaultOptions() {
		o(c)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize opens portName and transitions Closed -> Initialized.
func (c *Channel) Initialize(portName string, opmode OpMode, params SerialParams) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrAlreadyInit
	}
	c.mu.Unlock()

	if opmode&opModeFD != 0 {
		return fmt.Errorf("%w: CAN FD is not supported over SLCAN", ErrIllegalMode)
	}

	port, err := openPort(serialport.Config{Name: portName, Baud: params.Baud, ReadTimeout: params.ReadTimeout})
	if err != nil {
		if c.metricsEnabled {
			metrics.IncError(metrics.ErrPortOpen)
		}
		return fmt.Errorf("%w: %v", ErrPortError, err)
	}
	if err := c.initializeWithPort(port, opmode); err != nil {
		_ = port.Close()
		return err
	}
	c.log.Info("channel_initialized", "port", portName, "baud", params.Baud)
	return nil
}

// initializeWithPort performs the Closed -> Initialized transition against
// an already-open port, skipping openPort. It is the seam unit tests use
// to drive the state machine with a fake Port.
func (c *Channel) initializeWithPort(port serialport.Port, opmode OpMode) error {
	if opmode&opModeFD != 0 {
		return fmt.Errorf("%w: CAN FD is not supported over SLCAN", ErrIllegalMode)
	}

	slot, err := waitbuf.New(commandSlotCapacity)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: command slot: %v", ErrPortError, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.port = port
	c.codec = slcan.NewCodec()
	c.cmdSlot = slot
	c.rxQueue = rxqueue.New(c.rxCapacity)
	c.opmode = opmode
	c.lastError = nil

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.reader = newReaderTask(c.port, c.codec, c.rxQueue, c.cmdSlot, c.log, c.metricsEnabled, opmode)
	go c.reader.run(ctx)

	c.state = StateInitialized
	c.setStateGaugeLocked()
	return nil
}

// Start sends the bit-rate selector and open command, transitioning
// Initialized -> Running.
func (c *Channel) Start(bitrate numerics.BitrateIndex) error {
	c.commandMu.Lock()
	defer c.commandMu.Unlock()

	c.mu.Lock()
	if c.state != StateInitialized {
		c.mu.Unlock()
		return ErrWrongState
	}
	monitor := c.opmode&OpModeMonitor != 0
	c.mu.Unlock()

	cmd, err := numerics.SetCommand(bitrate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}

	if err := c.sendCommandLocked(cmd); err != nil {
		return err
	}

	openCmd := "O\r"
	if monitor {
		openCmd = "L\r"
	}
	if err := c.sendCommandLocked(openCmd); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateRunning
	c.setStateGaugeLocked()
	c.mu.Unlock()
	c.log.Info("channel_started", "bitrate", bitrate, "monitor", monitor)
	return nil
}

// sendCommandLocked writes a single-line SLCAN command and waits for its
// ack on the command slot. Caller must hold commandMu.
func (c *Channel) sendCommandLocked(line string) error {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()

	if _, err := port.Write([]byte(line)); err != nil {
		c.recordPortError(err)
		return fmt.Errorf("%w: %v", ErrPortError, err)
	}

	buf := make([]byte, commandSlotCapacity)
	n, err := c.cmdSlot.Get(buf, c.commandTimeout)
	if err != nil {
		return c.classifyCommandWaitError(err)
	}
	reply, err := unpackReply(buf[:n])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	if reply.kind == slcan.ReplyError {
		return ErrProtocolError
	}
	return nil
}

func (c *Channel) classifyCommandWaitError(err error) error {
	switch {
	case err == waitbuf.ErrTimedOut:
		return ErrTimeout
	case err == waitbuf.ErrEmpty:
		return ErrCancelled
	default:
		return fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
}

// Write encodes fr and waits for the device's per-frame acknowledgement.
// timeout follows internal/waitbuf's convention: 0 polls, negative blocks
// indefinitely, positive is a deadline.
func (c *Channel) Write(fr frame.Frame, timeout time.Duration) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateRunning {
		return ErrWrongState
	}

	line, err := slcan.Encode(fr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalFrame, err)
	}

	c.commandMu.Lock()
	defer c.commandMu.Unlock()

	c.mu.Lock()
	port := c.port
	c.mu.Unlock()

	if _, err := port.Write(line); err != nil {
		c.recordPortError(err)
		return fmt.Errorf("%w: %v", ErrPortError, err)
	}
	if c.metricsEnabled {
		metrics.IncFramesEncoded()
	}

	buf := make([]byte, commandSlotCapacity)
	n, err := c.cmdSlot.Get(buf, timeout)
	if err != nil {
		switch {
		case err == waitbuf.ErrTimedOut:
			return ErrTimeout
		case err == waitbuf.ErrEmpty:
			if timeout == 0 {
				return ErrTimeout
			}
			return ErrCancelled
		default:
			return fmt.Errorf("%w: %v", ErrProtocolError, err)
		}
	}
	reply, err := unpackReply(buf[:n])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	if reply.kind == slcan.ReplyError {
		return ErrTransmitterBusy
	}
	return nil
}

// Read pops the oldest received frame, waiting up to timeout (same
// convention as Write).
func (c *Channel) Read(timeout time.Duration) (frame.Frame, error) {
	c.mu.Lock()
	state := c.state
	rxQueue := c.rxQueue
	c.mu.Unlock()
	if state != StateRunning {
		return frame.Frame{}, ErrWrongState
	}

	fr, err := rxQueue.Pop(timeout)
	if err != nil {
		switch {
		case err == rxqueue.ErrTimedOut:
			return frame.Frame{}, ErrTimeout
		case err == rxqueue.ErrEmpty:
			if timeout == 0 {
				return frame.Frame{}, ErrReceiverEmpty
			}
			return frame.Frame{}, ErrCancelled
		default:
			return frame.Frame{}, fmt.Errorf("%w: %v", ErrProtocolError, err)
		}
	}
	return fr, nil
}

// Status returns the cached status byte, refreshing it with an "F" query
// if the cache is older than 100ms.
func (c *Channel) Status() (StatusByte, error) {
	c.mu.Lock()
	state := c.state
	cacheAge := time.Since(c.statusCacheTime)
	c.mu.Unlock()
	if state == StateClosed {
		return StatusByte{}, ErrWrongState
	}

	if cacheAge > 100*time.Millisecond {
		c.refreshStatus()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.statusCache
	st.Reset = state == StateInitialized
	st.QueueOverrun = c.rxQueue.Overrun()
	st.CommandCollisions = metrics.Snap().CommandCollisions
	st.LastError = c.lastError
	return st, nil
}

func (c *Channel) refreshStatus() {
	c.commandMu.Lock()
	defer c.commandMu.Unlock()

	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return
	}
	if _, err := port.Write([]byte("F\r")); err != nil {
		c.recordPortError(err)
		return
	}
	buf := make([]byte, commandSlotCapacity)
	n, err := c.cmdSlot.Get(buf, c.commandTimeout)
	if err != nil {
		return
	}
	reply, err := unpackReply(buf[:n])
	if err != nil || reply.kind != slcan.ReplyStatusFlags {
		return
	}
	c.mu.Lock()
	c.statusCache = decodeStatusFlags(reply.flags)
	c.statusCacheTime = time.Now()
	c.mu.Unlock()
}

// ClearStatus clears the latched queue_overrun bit after the caller has
// observed it via Status.
func (c *Channel) ClearStatus() {
	c.mu.Lock()
	q := c.rxQueue
	c.mu.Unlock()
	if q != nil {
		q.ClearOverrun()
	}
}

// SetFilterStd programs the 11-bit acceptance code/mask; legal only in
// Initialized.
func (c *Channel) SetFilterStd(code, mask uint16) error {
	return c.setFilter("M", uint32(code), uint32(mask), 3)
}

// SetFilterXtd programs the 29-bit acceptance code/mask; legal only in
// Initialized.
func (c *Channel) SetFilterXtd(code, mask uint32) error {
	return c.setFilter("m", code, mask, 8)
}

func (c *Channel) setFilter(cmd string, code, mask uint32, hexWidth int) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateInitialized {
		return ErrWrongState
	}

	c.commandMu.Lock()
	defer c.commandMu.Unlock()
	line := fmt.Sprintf("%s%0*X%0*X\r", cmd, hexWidth, code, hexWidth, mask)
	return c.sendCommandLocked(line)
}

// Signal asynchronously unblocks any currently suspended Write/Read on
// this channel; they return ErrCancelled. It does not change state.
func (c *Channel) Signal() {
	c.mu.Lock()
	slot := c.cmdSlot
	q := c.rxQueue
	c.mu.Unlock()
	if slot != nil {
		slot.Signal()
	}
	if q != nil {
		q.Cancel()
	}
}

// Teardown stops the reader task, writes C, closes the port and returns
// the channel to Closed. The command slot and receive queue stay allocated
// until the next Initialize replaces them. It is idempotent.
func (c *Channel) Teardown() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	reader := c.reader
	cancel := c.cancelFunc
	port := c.port
	c.mu.Unlock()

	if reader != nil && cancel != nil {
		reader.stop(cancel)
	}
	if port != nil {
		_, _ = port.Write([]byte("C\r"))
		_ = port.Close()
	}

	c.mu.Lock()
	c.state = StateClosed
	c.port = nil
	c.reader = nil
	c.cancelFunc = nil
	c.setStateGaugeLocked()
	c.mu.Unlock()
	c.log.Info("channel_closed")
	return nil
}

// Reset transitions Running -> Initialized without closing the port.
func (c *Channel) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrWrongState
	}
	c.state = StateInitialized
	c.setStateGaugeLocked()
	return nil
}

func (c *Channel) recordPortError(err error) {
	c.mu.Lock()
	c.lastError = err
	if c.state == StateRunning {
		c.state = StateInitialized
	}
	c.mu.Unlock()
	if c.metricsEnabled {
		metrics.IncError(metrics.ErrPortWrite)
	}
}

func (c *Channel) setStateGaugeLocked() {
	if c.metricsEnabled {
		metrics.SetChannelState(AllStates, c.state.String())
	}
}
