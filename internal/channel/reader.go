package channel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/slcan-go/slcan/internal/metrics"
	"github.com/slcan-go/slcan/internal/rxqueue"
	"github.com/slcan-go/slcan/internal/serialport"
	"github.com/slcan-go/slcan/internal/slcan"
	"github.com/slcan-go/slcan/internal/waitbuf"
)

const (
	readerReadBufSize           = 256
	readerLargeBufferReclaimCap = 64 * 1024
	readerBackoffMin            = 5 * time.Millisecond
	readerBackoffMax            = 500 * time.Millisecond
)

// readerTask assembles complete SLCAN lines from a stream of partial
// port reads and routes each decoded result either to the receive queue
// or to the blocked command waiter, per the Channel's dispatch table.
type readerTask struct {
	port    serialport.Port
	codec   *slcan.Codec
	rxQueue *rxqueue.Queue
	cmdSlot *waitbuf.Slot
	log     *slog.Logger
	metrics bool
	noXTD   bool
	noRTR   bool
	done    chan struct{}
}

func newReaderTask(port serialport.Port, codec *slcan.Codec, rxQueue *rxqueue.Queue, cmdSlot *waitbuf.Slot, log *slog.Logger, metricsEnabled bool, opmode OpMode) *readerTask {
	return &readerTask{
		port:    port,
		codec:   codec,
		rxQueue: rxQueue,
		cmdSlot: cmdSlot,
		log:     log,
		metrics: metricsEnabled,
		noXTD:   opmode&OpModeNoXTD != 0,
		noRTR:   opmode&OpModeNoRTR != 0,
		done:    make(chan struct{}),
	}
}

// run blocks until ctx is cancelled or the port reports a fatal error.
// Cancellation additionally signals cmdSlot and rxQueue so any blocked
// write/read unblocks within the bound the reader-task contract requires.
func (t *readerTask) run(ctx context.Context) {
	defer close(t.done)
	buf := make([]byte, readerReadBufSize)
	acc := bytes.NewBuffer(nil)
	backoff := readerBackoffMin

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			t.drainLines(acc)
			if acc.Len() == 0 && cap(acc.Bytes()) > readerLargeBufferReclaimCap {
				acc = bytes.NewBuffer(nil)
			}
			backoff = readerBackoffMin
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var perr *os.PathError
			if errors.As(err, &perr) {
				t.log.Error("port_fatal_error", "error", err)
				return
			}
			if t.metrics {
				metrics.IncError(metrics.ErrPortRead)
			}
			t.log.Warn("port_read_error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > readerBackoffMax {
				backoff = readerBackoffMax
			}
		}
	}
}

// drainLines decodes every complete line currently in acc, leaving any
// trailing partial line in place for the next read.
func (t *readerTask) drainLines(acc *bytes.Buffer) {
	for {
		data := acc.Bytes()
		d, consumed, err := t.codec.Decode(data)
		if errors.Is(err, slcan.ErrNeedMoreBytes) {
			return
		}
		acc.Next(consumed)
		if err != nil {
			if t.metrics {
				metrics.IncProtocolError()
			}
			t.log.Debug("protocol_error", "error", err)
			continue
		}
		t.dispatch(d)
	}
}

func (t *readerTask) dispatch(d slcan.Decoded) {
	if d.HasFrame {
		if (t.noXTD && d.Frame.Ext) || (t.noRTR && d.Frame.RTR) {
			// Local receive filter: the device still acknowledges these
			// frames on the wire, this driver just never surfaces them to
			// a caller configured to exclude that frame class.
			if t.metrics {
				metrics.IncFramesDecoded()
			}
			return
		}
		dropped := t.rxQueue.Push(d.Frame)
		if t.metrics {
			metrics.IncFramesDecoded()
			if dropped {
				metrics.IncQueueOverrun()
			}
		}
		return
	}
	payload := packReply(d.Reply)
	if _, err := t.cmdSlot.Put(payload); err != nil {
		// Reply-slot collision: the previous reply was never consumed.
		// Documented, tolerated behaviour: the latest reply wins, the
		// stale one is discarded, and the collision is counted.
		if t.metrics {
			metrics.IncCommandCollision()
		}
		t.cmdSlot.Clear()
		_, _ = t.cmdSlot.Put(payload)
	}
}

// stop requests the reader task to return and waits for it to do so.
func (t *readerTask) stop(cancel context.CancelFunc) {
	cancel()
	t.cmdSlot.Signal()
	t.rxQueue.Cancel()
	<-t.done
}
