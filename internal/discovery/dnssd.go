// Package discovery announces and browses Network MIDI 2.0 UDP endpoints
// over mDNS/DNS-SD, the same pure-Go announcement mechanism the teacher
// uses for its KISS-over-TCP service (src/dns_sd.go), retargeted at this
// stack's UDP transport endpoints instead of a TCP KISS port.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"

	"github.com/kb9vty/ump2/internal/config"
)

// ServiceType is the DNS-SD service type Network MIDI 2.0 UDP endpoints
// advertise under.
const ServiceType = "_midi2._udp"

// DefaultServiceName mirrors the teacher's dns_sd_default_service_name:
// "<product> on <hostname>", falling back to a bare product name if the
// hostname can't be read.
func DefaultServiceName(product string) string {
	hostname, err := os.Hostname()
	if err != nil {
		return product
	}
	hostname, _, _ = strings.Cut(hostname, ".")
	return product + " on " + hostname
}

// Announce registers a Network MIDI 2.0 UDP endpoint on the local network
// and responds to DNS-SD queries for it until ctx is cancelled. It blocks;
// callers run it in its own goroutine, matching the teacher's dns_sd.go
// background responder.
func Announce(ctx context.Context, cfg config.DiscoveryConfig) error {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName("ump2")
	}

	svcCfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: cfg.Port,
	}

	sv, err := dnssd.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("discovery: creating service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("discovery: creating responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("discovery: adding service: %w", err)
	}

	return rp.Respond(ctx)
}

// Endpoint is one discovered Network MIDI 2.0 UDP endpoint.
type Endpoint struct {
	Name string
	Host string
	Addr string // host:port, suitable for transport.Dial
	Port int
}

// Browse watches for Network MIDI 2.0 endpoints appearing and
// disappearing on the local network until ctx is cancelled, delivering
// each add/remove to added/removed. It blocks; callers run it in its own
// goroutine.
func Browse(ctx context.Context, added, removed func(Endpoint)) error {
	return dnssd.LookupType(ctx, ServiceType,
		func(e dnssd.BrowseEntry) {
			added(endpointFromBrowseEntry(e))
		},
		func(e dnssd.BrowseEntry) {
			removed(endpointFromBrowseEntry(e))
		},
	)
}

func endpointFromBrowseEntry(e dnssd.BrowseEntry) Endpoint {
	host := e.Host
	if len(e.IPs) > 0 {
		host = e.IPs[0].String()
	}
	return Endpoint{
		Name: e.Name,
		Host: e.Host,
		Addr: fmt.Sprintf("%s:%d", host, e.Port),
		Port: e.Port,
	}
}
