// Command slcan-moni opens an SLCAN channel, starts it at a configured
// bit-rate, and prints every received frame through the formatter until
// interrupted.
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
	"github.com/slcan-go/slcan/internal/discovery"
	"github.com/slcan-go/slcan/internal/formatter"
	"github.com/slcan-go/slcan/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func numberBase(s string) formatter.NumberBase {
	switch s {
	case "dec":
		return formatter.BaseDec
	case "oct":
		return formatter.BaseOct
	default:
		return formatter.BaseHex
	}
}

func buildFormatter(cfg *appConfig) *formatter.Formatter {
	fcfg := formatter.DefaultConfig()
	fcfg.SetIDBase(numberBase(cfg.idBase))
	fcfg.SetDLCBase(numberBase(cfg.dlcBase))
	fcfg.SetDataBase(numberBase(cfg.dataBase))
	fcfg.SetASCII(cfg.ascii)
	fcfg.SetCounter(cfg.counter)
	fcfg.SetEndOfLine(cfg.endOfLine)
	if cfg.separator == "tabs" {
		fcfg.SetSeparator(formatter.SeparatorTabs)
	}
	return formatter.New(fcfg)
}

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("slcan-moni %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	bitrate, _ := bitrateFromFlag(cfg.bitrate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opmode := channel.OpMode(0)
	if cfg.monitor {
		opmode |= channel.OpModeMonitor
	}

	ch := channel.New(channel.WithLogger(l))
	if err := ch.Initialize(cfg.port, opmode, channel.SerialParams{Baud: cfg.baud, ReadTimeout: cfg.readTimeout}); err != nil {
		l.Error("initialize_failed", "error", err)
		os.Exit(1)
	}
	if err := ch.Start(bitrate); err != nil {
		l.Error("start_failed", "error", err)
		_ = ch.Teardown()
		os.Exit(1)
	}
	l.Info("channel_running", "port", cfg.port, "bitrate", cfg.bitrate)

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		metrics.SetReadinessFunc(func() bool { return ch.State() == channel.StateRunning })
	}

	if cfg.mdnsEnable {
		cleanup, err := discovery.Advertise(ctx, discovery.Config{
			Enabled: true,
			Name:    cfg.mdnsName,
			Port:    0,
			Meta:    []string{"port=" + cfg.port, "bitrate=" + cfg.bitrate, "version=" + version},
		})
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			defer cleanup()
		}
	}

	f := buildFormatter(cfg)
	go printLoop(ctx, ch, f, l)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	_ = ch.Teardown()
}

func printLoop(ctx context.Context, ch *channel.Channel, f *formatter.Formatter, l *slog.Logger) {
	var counter uint64
	for {
		if ctx.Err() != nil {
			return
		}
		fr, err := ch.Read(200 * time.Millisecond)
		if err != nil {
			if !errors.Is(err, channel.ErrTimeout) && !errors.Is(err, channel.ErrCancelled) {
				l.Warn("read_error", "error", err)
			}
			continue
		}
		counter++
		fmt.Println(f.Format(fr, counter))
	}
}
