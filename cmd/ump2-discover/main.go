// Command ump2-discover browses for Network MIDI 2.0 UDP endpoints via
// DNS-SD and, for a selected endpoint, queries its topology over a UMP
// Stream session.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/kb9vty/ump2/internal/discovery"
	"github.com/kb9vty/ump2/internal/logx"
	"github.com/kb9vty/ump2/internal/topology"
	"github.com/kb9vty/ump2/internal/transport"
)

func main() {
	var browseOnly = pflag.BoolP("browse", "b", false, "Only browse for endpoints via DNS-SD; don't query topology.")
	var addr = pflag.StringP("addr", "a", "", "Connect directly to this host:port instead of browsing.")
	var browseDuration = pflag.DurationP("browse-duration", "d", 3*time.Second, "How long to browse before picking an endpoint.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := logx.New("ump2-discover", nil)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	target := *addr
	if target == "" {
		found, err := browse(ctx, *browseDuration, logger)
		if err != nil {
			logger.Error("browsing for endpoints", "err", err)
			os.Exit(1)
		}
		if *browseOnly || len(found) == 0 {
			return
		}
		target = found[0].Addr
		logger.Info("querying topology of first discovered endpoint", "name", found[0].Name, "addr", target)
	}

	if err := queryTopology(ctx, target, logger); err != nil {
		logger.Error("querying topology", "err", err)
		os.Exit(1)
	}
}

func browse(ctx context.Context, duration time.Duration, logger *log.Logger) ([]discovery.Endpoint, error) {
	browseCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var found []discovery.Endpoint
	err := discovery.Browse(browseCtx,
		func(e discovery.Endpoint) {
			logger.Info("found endpoint", "name", e.Name, "addr", e.Addr)
			found = append(found, e)
		},
		func(e discovery.Endpoint) {
			logger.Info("endpoint went away", "name", e.Name)
		},
	)
	if err != nil && browseCtx.Err() == nil {
		return found, err
	}
	return found, nil
}

func queryTopology(ctx context.Context, addr string, logger *log.Logger) error {
	sess, err := transport.Dial(ctx, addr, transport.DialConfig{
		LocalUCMEP:       uint32(time.Now().UnixNano()),
		Logger:           logger,
		HandshakeTimeout: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer sess.Close()

	disc := topology.NewDiscoverer(sess.SendPacket, sess.Packets())
	ep, err := disc.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering topology: %w", err)
	}

	fmt.Printf("Endpoint: %s (%s)\n", ep.Name, ep.ProductInstanceID)
	fmt.Printf("  UMP version: %d.%d  MIDI1=%v MIDI2=%v JRTx=%v JRRx=%v\n",
		ep.UMPVersionMajor, ep.UMPVersionMinor, ep.SupportsMIDI1, ep.SupportsMIDI2, ep.SupportsJRTx, ep.SupportsJRRx)
	for _, fb := range ep.FunctionBlocks {
		fmt.Printf("  Function Block %d: %q groups=%d-%d active=%v\n",
			fb.ID, fb.Name, fb.FirstGroup, fb.FirstGroup+fb.NumGroups-1, fb.IsActive)
	}
	return nil
}
