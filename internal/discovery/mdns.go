// Package discovery advertises a running monitor process over mDNS so
// LAN tooling can find where a channel's metrics and log stream live.
// It advertises the process, not a CAN channel: one serial port still
// binds to exactly one process, so this carries no bus-broker semantics.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type a monitor process registers under.
const ServiceType = "_slcan-moni._tcp"

// Config controls whether and how the advertisement is published.
type Config struct {
	Enabled bool
	Name    string // instance name; defaults to "slcan-moni-<hostname>"
	Port    int
	Meta    []string // TXT records, e.g. "channel=can0", "bitrate=500000"
}

// Advertise registers the service via mDNS and returns a cleanup
// function. Calling it with Config.Enabled false is a safe no-op, so
// callers don't need to branch on whether discovery is configured.
func Advertise(ctx context.Context, cfg Config) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	instance := cfg.Name
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("slcan-moni-%s", host)
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", cfg.Port, cfg.Meta, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() {
		close(done)
		svc.Shutdown()
		time.Sleep(50 * time.Millisecond)
	}, nil
}
