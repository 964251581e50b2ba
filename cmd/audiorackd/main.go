package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"audiorack/internal/castout"
	"audiorack/internal/devicemgr"
	"audiorack/internal/hw"
	"audiorack/internal/output"
	"audiorack/internal/runtime"
	"audiorack/internal/source"
	"audiorack/internal/store"
)

func main() {
	dbPath := flag.String("db", "audiorack.db", "SQLite database path")
	httpAddr := flag.String("addr", ":8090", "HTTP control API listen address")
	streamPath := flag.String("stream-path", "/stream/live.pcm", "HTTP live-stream endpoint path")
	musicDir := flag.String("music-dir", "music", "root directory for local file playback")
	localDevice := flag.String("local-output-device", "", "PortAudio output device id for the local speaker output (empty = system default)")
	lineInPort := flag.String("line-in-port", "", "USB port path for a turntable/generic line-in source (empty to disable)")
	announceName := flag.String("announce-name", "audiorack", "mDNS service name this appliance advertises itself under")
	noAnnounce := flag.Bool("no-announce", false, "disable mDNS self-announcement")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	enumerator, err := devicemgr.NewPortAudioEnumerator()
	if err != nil {
		log.Fatalf("[devicemgr] %v", err)
	}
	defer enumerator.Close()

	rt := runtime.New(st, enumerator, *httpAddr, *streamPath, time.Now)

	// Local file playback, rooted at musicDir.
	fs := hw.LocalFileSystem{Root: *musicDir}
	filePlayer := source.NewFilePlayer("file_player", "Local Files", fs, st, time.Now().UnixNano())
	rt.RegisterSource(filePlayer)

	// Broadcast radio. Real RF hardware wires in its own source.Tuner in
	// place of hw.SilentTuner; see internal/hw's doc comment.
	tuner := hw.NewSilentTuner()
	go tuner.Run(context.Background())
	radio := source.NewSdrRadio("radio", "Radio", tuner, rt.NewRadioPresetStore("radio"))
	rt.RegisterSource(radio)

	// Network stream source (e.g. an internet radio endpoint added via
	// the queue API).
	streamSvc := source.NewStreamingService("stream", "Network Stream", &hw.HTTPStreamProvider{})
	rt.RegisterSource(streamSvc)

	if *lineInPort != "" {
		lineIn := source.NewUsbLineIn("line_in", "Line In", *lineInPort, rt.Devices, hw.PortAudioCaptureOpener{})
		rt.RegisterSource(lineIn)
	}

	localOut := output.NewLocalOutput("local", *localDevice, output.PortAudioStreamOpener{}, rt.Fanout.AddConsumer("local"))
	rt.AddOutput(localOut)

	var announcer *castout.DnssdAnnouncer
	if !*noAnnounce {
		if port, ok := portFromAddr(*httpAddr); ok {
			announcer, err = castout.Announce(*announceName, port)
			if err != nil {
				slog.Warn("audiorackd: mDNS announce failed", "error", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("audiorackd: shutting down")
		cancel()
	}()

	slog.Info("audiorackd: starting", "db", *dbPath, "addr", *httpAddr, "music_dir", *musicDir)
	err = rt.Run(ctx)
	cancel()
	if announcer != nil {
		announcer.Close()
	}
	if err != nil && ctx.Err() == nil {
		log.Fatalf("[runtime] %v", err)
	}
}

// portFromAddr extracts the numeric port from a "host:port" listen
// address for mDNS advertisement.
func portFromAddr(addr string) (int, bool) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}
