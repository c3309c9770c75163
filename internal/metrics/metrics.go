// Package metrics exposes Prometheus counters and gauges for the SLCAN
// driver: frames decoded/encoded, protocol errors, queue overruns, command
// round-trip collisions and reader-task health, plus a local
// atomic-mirrored snapshot for cheap in-process logging without scraping
// Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/slcan-go/slcan/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_frames_decoded_total",
		Help: "Total CAN frames decoded from the serial link.",
	})
	FramesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_frames_encoded_total",
		Help: "Total CAN frames encoded and written to the serial link.",
	})
	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_protocol_errors_total",
		Help: "Total malformed lines rejected by the codec.",
	})
	QueueOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_queue_overruns_total",
		Help: "Total frames dropped by the receive queue due to overflow.",
	})
	CommandCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_command_collisions_total",
		Help: "Total device replies that replaced an unconsumed reply in the command slot.",
	})
	ReaderTaskRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_reader_task_restarts_total",
		Help: "Total times the reader task goroutine was restarted after a port error.",
	})
	ChannelState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slcan_channel_state",
		Help: "Current channel state (1 for the active state, 0 otherwise), by state name.",
	}, []string{"state"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slcan_build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slcan_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrPortRead    = "port_read"
	ErrPortWrite   = "port_write"
	ErrPortOpen    = "port_open"
	ErrCommandWait = "command_wait"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on the given address.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap in-process logging.
var (
	localDecoded    uint64
	localEncoded    uint64
	localProtoErr   uint64
	localOverruns   uint64
	localCollisions uint64
	localRestarts   uint64
	localErrors     uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	FramesDecoded      uint64
	FramesEncoded      uint64
	ProtocolErrors     uint64
	QueueOverruns      uint64
	CommandCollisions  uint64
	ReaderTaskRestarts uint64
	Errors             uint64
}

// Snap returns a point-in-time copy of the local counters.
func Snap() Snapshot {
	return Snapshot{
		FramesDecoded:      atomic.LoadUint64(&localDecoded),
		FramesEncoded:      atomic.LoadUint64(&localEncoded),
		ProtocolErrors:     atomic.LoadUint64(&localProtoErr),
		QueueOverruns:      atomic.LoadUint64(&localOverruns),
		CommandCollisions:  atomic.LoadUint64(&localCollisions),
		ReaderTaskRestarts: atomic.LoadUint64(&localRestarts),
		Errors:             atomic.LoadUint64(&localErrors),
	}
}

func IncFramesDecoded() {
	FramesDecoded.Inc()
	atomic.AddUint64(&localDecoded, 1)
}

func IncFramesEncoded() {
	FramesEncoded.Inc()
	atomic.AddUint64(&localEncoded, 1)
}

func IncProtocolError() {
	ProtocolErrors.Inc()
	atomic.AddUint64(&localProtoErr, 1)
}

func IncQueueOverrun() {
	QueueOverruns.Inc()
	atomic.AddUint64(&localOverruns, 1)
}

func IncCommandCollision() {
	CommandCollisions.Inc()
	atomic.AddUint64(&localCollisions, 1)
}

func IncReaderTaskRestart() {
	ReaderTaskRestarts.Inc()
	atomic.AddUint64(&localRestarts, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetChannelState sets the gauge for state to 1 and every other known
// state to 0, so a single Prometheus query selects the active state.
func SetChannelState(states []string, active string) {
	for _, s := range states {
		if s == active {
			ChannelState.WithLabelValues(s).Set(1)
		} else {
			ChannelState.WithLabelValues(s).Set(0)
		}
	}
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error observed does not pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrPortRead, ErrPortWrite, ErrPortOpen, ErrCommandWait} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
