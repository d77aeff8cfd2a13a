// ABOUTME: Entry point for the yume-jukebox looping pitch player
// ABOUTME: Parses CLI flags, opens a playback session and runs the TUI or headless loop
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Desdaemon/yume-jukebox/internal/config"
	"github.com/Desdaemon/yume-jukebox/internal/logger"
	"github.com/Desdaemon/yume-jukebox/internal/ui"
	"github.com/Desdaemon/yume-jukebox/internal/version"
	"github.com/Desdaemon/yume-jukebox/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
)

// defaultLogFile receives logs in TUI mode when no file output is configured.
const defaultLogFile = "yume-jukebox.log"

var (
	backend      = flag.String("backend", "", "Output backend (malgo, oto, portaudio, null)")
	format       = flag.String("format", "", "Output sample format (s16, f32)")
	bufferFrames = flag.Int("buffer-frames", 0, "Output buffer capacity in frames")
	pitch        = flag.Float64("pitch", 1.0, "Initial transpose factor (0.25-4)")
	configPath   = flag.String("config", "", "Config file path (default: search for config.yaml)")
	logFile      = flag.String("log-file", "", "Log file path")
	logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	startPaused  = flag.Bool("start-paused", false, "Open the stream without starting it")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath, flagOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	useTUI := !cfg.NoTUI
	if useTUI {
		// The TUI owns the terminal, so only file outputs survive.
		cfg.Log.Outputs = fileOutputs(cfg.Log.Outputs)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Close() }()
	log := logger.Logger()

	if err := run(log, cfg, path, useTUI); err != nil {
		log.Error("player failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

// flagOverrides maps explicitly set flags to config keys, so unset flags
// do not mask the config file or environment.
func flagOverrides() map[string]any {
	overrides := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			overrides["backend"] = *backend
		case "format":
			overrides["format"] = *format
		case "buffer-frames":
			overrides["buffer_frames"] = *bufferFrames
		case "pitch":
			overrides["pitch"] = *pitch
		case "log-file":
			overrides["log.outputs"] = []string{"stdout", *logFile}
		case "log-level":
			overrides["log.level"] = *logLevel
		case "start-paused":
			overrides["start_paused"] = *startPaused
		case "no-tui":
			overrides["no_tui"] = *noTUI
		}
	})
	return overrides
}

func fileOutputs(outputs []string) []string {
	var files []string
	for _, o := range outputs {
		if o != "" && o != "stdout" && o != "stderr" {
			files = append(files, o)
		}
	}
	if len(files) == 0 {
		files = []string{defaultLogFile}
	}
	return files
}

func run(log *slog.Logger, cfg config.Config, path string, useTUI bool) error {
	log.Info("starting", "version", version.Version, "file", path, "backend", cfg.Backend, "config", cfg.File)

	opts, err := cfg.PlaybackOptions(log)
	if err != nil {
		return err
	}
	ctl, err := playback.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctl.Close(); err != nil {
			log.Warn("error closing controller", "error", err)
		}
	}()

	h, err := ctl.Open(path, cfg.Pitch)
	if err != nil {
		return err
	}
	state := playback.Started
	if cfg.StartPaused {
		state = playback.Stopped
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if !useTUI {
		return runHeadless(log, ctl, h, sigChan)
	}
	return runTUI(log, ctl, h, path, cfg, state, sigChan)
}

func runHeadless(log *slog.Logger, ctl *playback.Controller, h playback.Handle, sigChan <-chan os.Signal) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	logStatus(log, ctl, h)
	for {
		select {
		case <-ticker.C:
			logStatus(log, ctl, h)
		case sig := <-sigChan:
			log.Info("shutdown signal received", "signal", sig.String())
			return ctl.Dispose(h)
		}
	}
}

func logStatus(log *slog.Logger, ctl *playback.Controller, h playback.Handle) {
	info, err := ctl.Info(h)
	if err != nil {
		log.Warn("status unavailable", "error", err)
		return
	}
	log.Info("status",
		"pitch", info.Pitch,
		"position", info.LoopPosition().Round(time.Millisecond),
		"duration", info.Duration.Round(time.Millisecond),
		"frames_rendered", info.FramesRendered)
}

func runTUI(log *slog.Logger, ctl *playback.Controller, h playback.Handle, path string, cfg config.Config, state playback.StreamState, sigChan <-chan os.Signal) error {
	pitchCtrl := ui.NewPitchControl()
	prog, err := ui.Run(pitchCtrl, cfg.Pitch, cfg.PitchStep)
	if err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	tuiDone := make(chan error, 1)
	go func() {
		_, err := prog.Run()
		tuiDone <- err
	}()

	info, err := ctl.Info(h)
	if err == nil {
		prog.Send(ui.StatusMsg{
			File:       filepath.Base(path),
			Backend:    info.Backend,
			Handle:     h.String(),
			MIME:       info.MIME,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			Duration:   info.Duration,
			State:      &state,
			Pitch:      info.Pitch,
		})
	}

	go statsUpdateLoop(ctl, h, prog.Send)

	for {
		select {
		case change := <-pitchCtrl.Changes:
			if err := ctl.SetPitch(h, change.Pitch); err != nil {
				log.Warn("pitch change rejected", "pitch", change.Pitch, "error", err)
				continue
			}
			log.Debug("pitch changed", "pitch", change.Pitch)
		case change := <-pitchCtrl.States:
			if err := ctl.RequestStateChange(h, change.State); err != nil {
				log.Warn("state change failed", "state", change.State.String(), "error", err)
				continue
			}
			s := change.State
			prog.Send(ui.StatusMsg{State: &s})
		case <-pitchCtrl.Quit:
			log.Info("received quit from TUI")
			prog.Quit()
			<-tuiDone
			return ctl.Dispose(h)
		case sig := <-sigChan:
			log.Info("shutdown signal received", "signal", sig.String())
			prog.Quit()
			<-tuiDone
			return ctl.Dispose(h)
		case err := <-tuiDone:
			if err != nil {
				log.Error("TUI exited", "error", err)
			}
			return ctl.Dispose(h)
		}
	}
}

// statsUpdateLoop periodically pushes the session snapshot to the TUI.
func statsUpdateLoop(ctl *playback.Controller, h playback.Handle, send func(tea.Msg)) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		info, err := ctl.Info(h)
		if err != nil {
			return
		}
		send(ui.StatusMsg{
			Pitch:    info.Pitch,
			Position: info.LoopPosition(),
			Cursor:   info.Position,
			Rendered: info.FramesRendered,
		})
	}
}
