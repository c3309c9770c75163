package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/slcan-go/slcan/internal/numerics"
)

type appConfig struct {
	port         string
	baud         int
	readTimeout  time.Duration
	bitrate      string
	monitor      bool
	logFormat    string
	logLevel     string
	metricsAddr  string
	mdnsEnable   bool
	mdnsName     string
	idBase       string
	dlcBase      string
	dataBase     string
	ascii        bool
	counter      bool
	separator    string
	endOfLine    bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	port := flag.String("port", "/dev/ttyUSB0", "Serial device path")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	readTO := flag.Duration("read-timeout", 50*time.Millisecond, "Serial read timeout")
	bitrate := flag.String("bitrate", "500k", "CAN bit-rate: 10k|20k|50k|100k|125k|250k|500k|800k|1m")
	monitor := flag.Bool("listen-only", false, "Open in listen-only mode (no ACKs sent)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of this monitor process")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default slcan-moni-<hostname>)")
	idBase := flag.String("id-base", "hex", "Identifier radix: hex|dec|oct")
	dlcBase := flag.String("dlc-base", "dec", "DLC radix: hex|dec|oct")
	dataBase := flag.String("data-base", "hex", "Data-byte radix: hex|dec|oct")
	ascii := flag.Bool("ascii", true, "Append a printable-ASCII column")
	counter := flag.Bool("counter", true, "Print a leading message counter")
	separator := flag.String("separator", "spaces", "Field separator: spaces|tabs")
	eol := flag.Bool("eol", false, "Append a trailing newline to each line")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	set := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })

	cfg.port = *port
	cfg.baud = *baud
	cfg.readTimeout = *readTO
	cfg.bitrate = *bitrate
	cfg.monitor = *monitor
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.idBase = *idBase
	cfg.dlcBase = *dlcBase
	cfg.dataBase = *dataBase
	cfg.ascii = *ascii
	cfg.counter = *counter
	cfg.separator = *separator
	cfg.endOfLine = *eol

	applyEnvOverrides(cfg, set)

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
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	for _, b := range []string{c.idBase, c.dlcBase, c.dataBase} {
		switch b {
		case "hex", "dec", "oct":
		default:
			return fmt.Errorf("invalid number base: %s", b)
		}
	}
	switch c.separator {
	case "spaces", "tabs":
	default:
		return fmt.Errorf("invalid separator: %s", c.separator)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.readTimeout <= 0 {
		return fmt.Errorf("read-timeout must be > 0")
	}
	return nil
}

// bitrateFromFlag maps the flag's human-readable bit-rate string to a
// numerics.BitrateIndex.
func bitrateFromFlag(s string) (numerics.BitrateIndex, error) {
	switch strings.ToLower(s) {
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

// applyEnvOverrides maps SLCAN_MONI_* environment variables onto cfg
// unless the corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["port"]; !ok {
		if v, ok := get("SLCAN_MONI_PORT"); ok && v != "" {
			c.port = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("SLCAN_MONI_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			}
		}
	}
	if _, ok := set["bitrate"]; !ok {
		if v, ok := get("SLCAN_MONI_BITRATE"); ok && v != "" {
			c.bitrate = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("SLCAN_MONI_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("SLCAN_MONI_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("SLCAN_MONI_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("SLCAN_MONI_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("SLCAN_MONI_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
}
