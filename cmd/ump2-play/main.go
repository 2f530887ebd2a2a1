// Command ump2-play plays a Standard MIDI File as a Network MIDI 2.0 UDP
// session or over a raw UMP character device.
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

	"github.com/kb9vty/ump2/internal/config"
	"github.com/kb9vty/ump2/internal/logx"
	"github.com/kb9vty/ump2/internal/playback"
	"github.com/kb9vty/ump2/internal/rawendpoint"
	"github.com/kb9vty/ump2/internal/smf"
	"github.com/kb9vty/ump2/internal/transport"
)

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML config file (see config.Config). Omitted options use spec defaults.")
	var remoteAddr = pflag.StringP("remote", "r", "", "Network MIDI 2.0 UDP remote address, host:port. Mutually exclusive with --device.")
	var devicePath = pflag.StringP("device", "d", "", "Raw UMP character device path, e.g. /dev/umpC1D0. Mutually exclusive with --remote.")
	var group = pflag.Uint8P("group", "g", 0, "UMP Group to play the file on, 0-15.")
	var trackIndex = pflag.IntP("track", "t", -1, "Project only this track index (format 2 files require this). -1 merges all tracks (format 0/1).")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file.mid\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	logger := logx.New("ump2-play", nil)

	f, err := os.Open(pflag.Arg(0))
	if err != nil {
		logger.Error("opening SMF file", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	file, err := smf.ReadFile(f)
	if err != nil {
		logger.Error("parsing SMF file", "err", err)
		os.Exit(1)
	}

	var sched []smf.ScheduledPacket
	if *trackIndex >= 0 {
		sched, err = smf.ProjectTrack(file, *trackIndex, *group)
	} else {
		sched, err = smf.Project(file, *group)
	}
	if err != nil {
		logger.Error("projecting SMF file to UMP", "err", err)
		os.Exit(1)
	}
	logger.Info("loaded sequence", "events", len(sched))

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			logger.Error("loading config", "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink, closeSink, err := openSink(ctx, *remoteAddr, *devicePath, cfg, logger)
	if err != nil {
		logger.Error("opening output", "err", err)
		os.Exit(1)
	}
	defer closeSink()

	stats, err := playback.Run(ctx, sink, sched, logger)
	logger.Info("playback finished", "sent", stats.Sent, "late", stats.LateEvents)
	if err != nil {
		logger.Error("playback stopped early", "err", err)
		os.Exit(1)
	}
}

func openSink(ctx context.Context, remoteAddr, devicePath string, cfg config.Config, logger *log.Logger) (playback.Sink, func(), error) {
	switch {
	case remoteAddr != "" && devicePath != "":
		return nil, nil, fmt.Errorf("--remote and --device are mutually exclusive")
	case remoteAddr != "":
		creds, err := transport.CredentialsFromConfig(cfg.Transport.Auth)
		if err != nil {
			return nil, nil, err
		}
		sess, err := transport.Dial(ctx, remoteAddr, transport.DialConfig{
			LocalUCMEP:        randomUCMEP(),
			Credentials:       creds,
			OutstandingWindow: cfg.Transport.OutstandingWindow,
			Logger:            logger,
			IdleTimeout:       time.Duration(cfg.Transport.IdleTimeoutSeconds) * time.Second,
			HandshakeTimeout:  10 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return sess.SendPacket, func() { sess.Close() }, nil
	case devicePath != "":
		dev, err := rawendpoint.OpenDevice(devicePath)
		if err != nil {
			return nil, nil, err
		}
		ep := rawendpoint.New(dev, rawendpoint.WithLogger(logger))
		go ep.Run(ctx)
		return ep.Send, func() { ep.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("one of --remote or --device is required")
	}
}

func randomUCMEP() uint32 {
	return uint32(time.Now().UnixNano())
}
