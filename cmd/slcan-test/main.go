// Command slcan-test drives an SLCAN channel through a fixed transmit
// burst or a timed receive count, and reports throughput — a thin
// stand-in for an interactive loopback/self-test harness.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slcan-go/slcan/internal/channel"
	"github.com/slcan-go/slcan/internal/frame"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("slcan-test %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)

	bitrate, _ := bitrateFromFlag(cfg.bitrate)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	defer cancel()

	ch := channel.New(channel.WithLogger(l))
	if err := ch.Initialize(cfg.port, 0, channel.SerialParams{Baud: cfg.baud, ReadTimeout: cfg.readTimeout}); err != nil {
		l.Error("initialize_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = ch.Teardown() }()

	if err := ch.Start(bitrate); err != nil {
		l.Error("start_failed", "error", err)
		os.Exit(1)
	}

	switch cfg.mode {
	case "tx":
		runTransmitterTest(ctx, ch, cfg, l)
	default:
		runReceiverTest(ctx, ch, cfg, l)
	}
}

// runTransmitterTest sends cfg.count frames (or runs for cfg.duration,
// whichever applies), each separated by cfg.delay, and reports the
// achieved rate. Grounded on the original TransmitterTest's
// count/duration/delay/id/dlc parameterization.
func runTransmitterTest(ctx context.Context, ch *channel.Channel, cfg *appConfig, l *slog.Logger) {
	payload := make([]byte, cfg.dlc)
	for i := range payload {
		payload[i] = byte(i)
	}
	fr, err := frame.New(cfg.canID, cfg.extended, false, payload)
	if err != nil {
		l.Warn("invalid_test_frame", "error", err)
		return
	}

	deadline := time.Time{}
	if cfg.duration > 0 {
		deadline = time.Now().Add(cfg.duration)
	}

	start := time.Now()
	var sent uint64
	for sent < cfg.count || cfg.duration > 0 {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if cfg.duration == 0 && sent >= cfg.count {
			break
		}
		if err := ch.Write(fr, time.Second); err != nil {
			l.Warn("write_error", "error", err)
			continue
		}
		sent++
		if cfg.delay > 0 {
			time.Sleep(cfg.delay)
		}
	}
	elapsed := time.Since(start)
	l.Info("transmit_done", "frames", sent, "elapsed", elapsed, "frames_per_sec", rate(sent, elapsed))
}

// runReceiverTest counts frames delivered by Read until cfg.duration
// elapses or the process is interrupted.
func runReceiverTest(ctx context.Context, ch *channel.Channel, cfg *appConfig, l *slog.Logger) {
	deadline := time.Time{}
	if cfg.duration > 0 {
		deadline = time.Now().Add(cfg.duration)
	}
	start := time.Now()
	var received uint64
	for {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		_, err := ch.Read(200 * time.Millisecond)
		if err != nil {
			if errors.Is(err, channel.ErrCancelled) {
				break
			}
			continue
		}
		received++
	}
	elapsed := time.Since(start)
	l.Info("receive_done", "frames", received, "elapsed", elapsed, "frames_per_sec", rate(received, elapsed))
}

func rate(count uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}
