package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/slcan-go/slcan/internal/numerics"
)

type appConfig struct {
	port        string
	baud        int
	readTimeout time.Duration
	bitrate     string
	mode        string // "rx" | "tx"
	canID       uint32
	extended    bool
	dlc         int
	count       uint64
	delay       time.Duration
	duration    time.Duration
	logFormat   string
	logLevel    string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	port := flag.String("port", "/dev/ttyUSB0", "Serial device path")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	readTO := flag.Duration("read-timeout", 50*time.Millisecond, "Serial read timeout")
	bitrate := flag.String("bitrate", "500k", "CAN bit-rate: 10k|20k|50k|100k|125k|250k|500k|800k|1m")
	mode := flag.String("mode", "rx", "Test mode: rx (count received frames) | tx (transmit a burst)")
	canID := flag.Uint("id", 0x100, "CAN identifier used by tx mode")
	extended := flag.Bool("extended", false, "Use a 29-bit extended identifier")
	dlc := flag.Int("dlc", 8, "Payload length (0..8) used by tx mode")
	count := flag.Uint64("count", 1000, "Number of frames to transmit (tx mode)")
	delay := flag.Duration("delay", 0, "Delay between transmitted frames (tx mode)")
	duration := flag.Duration("duration", 0, "If > 0, run for this long instead of a fixed count (rx or tx mode)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	cfg.port = *port
	cfg.baud = *baud
	cfg.readTimeout = *readTO
	cfg.bitrate = *bitrate
	cfg.mode = *mode
	cfg.canID = uint32(*canID)
	cfg.extended = *extended
	cfg.dlc = *dlc
	cfg.count = *count
	cfg.delay = *delay
	cfg.duration = *duration
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel

	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if _, err := bitrateFromFlag(c.bitrate); err != nil {
		return err
	}
	switch c.mode {
	case "rx", "tx":
	default:
		return fmt.Errorf("invalid mode: %s", c.mode)
	}
	if c.dlc < 0 || c.dlc > 8 {
		return fmt.Errorf("dlc must be 0..8 (got %d)", c.dlc)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	return nil
}

func bitrateFromFlag(s string) (numerics.BitrateIndex, error) {
	switch s {
	case "10k":
		return numerics.Bitrate10K, nil
	case "20k":
		return numerics.Bitrate20K, nil
	case "50k":
		return numerics.Bitrate50K, nil
	case "100k":
		return numerics.Bitrate100K, nil
	case "125k":
		return numerics.Bitrate125K, nil
	case "250k":
		return numerics.Bitrate250K, nil
	case "500k":
		return numerics.Bitrate500K, nil
	case "800k":
		return numerics.Bitrate800K, nil
	case "1m":
		return numerics.Bitrate1M, nil
	default:
		return 0, fmt.Errorf("unknown bit-rate %q", s)
	}
}
