// Command patchhost wires together an Engine, an audio/MIDI source, the
// Patch Player, and, when a listen address is configured, a Server
// Session speaking the wire protocol over a TCP JSONStream, and runs
// until interrupted. With no listen address it runs the player alone,
// with no session.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/patchkit/core/internal/applog"
	"github.com/patchkit/core/internal/config"
	"github.com/patchkit/core/pkg/audioio"
	"github.com/patchkit/core/pkg/engine"
	"github.com/patchkit/core/pkg/player"
	"github.com/patchkit/core/pkg/session"
	"github.com/patchkit/core/pkg/transport"
)

var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	listenAddr := pflag.StringP("listen", "l", "", "TCP address to accept one UI connection on (overrides config)")
	patchPath := pflag.StringP("patch", "p", "", "patch manifest path to load at startup (overrides config)")
	logLevel := pflag.StringP("log-level", "v", "", "log level: debug, info, warn, error (overrides config)")
	help := pflag.BoolP("help", "h", false, "display help text")
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Loader{ConfigPath: *configPath}.Load()
	if err != nil {
		applog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *patchPath != "" {
		cfg.PatchPath = *patchPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := applog.New(os.Stderr, "patchhost")
	logger.SetLevel(parseLevel(cfg.LogLevel))
	applog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "version", version, "listen_addr", cfg.ListenAddr, "patch_path", cfg.PatchPath)

	// STEP 1: bind the listener before doing anything else that can fail,
	// so a client attempting to connect immediately after process start
	// never sees connection-refused (mirrors the teacher's "bind port
	// immediately" sequencing).
	var listener net.Listener
	if cfg.ListenAddr != "" {
		listener, err = net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			logger.Error("failed to bind listener", "error", err)
			os.Exit(1)
		}
		defer listener.Close()
		logger.Info("listener bound", "addr", listener.Addr().String())
	}

	// STEP 2: construct the engine and player.
	eng := buildEngine(cfg, logger)
	p := player.New(eng)
	p.OnPatchLoaded(func() { logger.Info("patch loaded") })
	p.OnPatchUnloaded(func() { logger.Info("patch unloaded") })
	p.OnStatusChange(func(st player.Status) {
		if st.Error != "" {
			logger.Error("status error", "error", st.Error)
		}
	})

	var audioSource audioio.Player
	paPlayer, err := audioio.NewPortAudioPlayer(cfg.AudioBlockSize, cfg.AudioInputChannels, cfg.AudioOutputChannels)
	if err != nil {
		logger.Warn("no audio device available, running without device I/O", "error", err)
	} else {
		audioSource = paPlayer
		if err := p.SetAudioIO(audioSource); err != nil {
			logger.Error("failed to bind audio device", "error", err)
		}
	}

	if cfg.PatchPath != "" {
		if !p.LoadPatch(cfg.PatchPath) {
			logger.Error("failed to load patch", "path", cfg.PatchPath)
		} else {
			p.Start()
		}
	}

	// STEP 3: accept the single UI transport this process serves, either
	// over TCP (standalone process) or never (embedded demo mode has no
	// external client; patchhost just runs the player).
	var tr transport.Transport
	var sess *session.Session
	if listener != nil {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error("failed to accept connection", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		tr = transport.NewJSONStream(conn)
		sess = session.New(tr)
		sess.SetCPUInfoDefaultRate(cfg.CPUInfoRate)
		stopWatchdog := sess.StartWatchdog(session.DefaultWatchdogTick, timeoutOrDefault(cfg.WatchdogTimeoutSeconds))
		defer stopWatchdog()

		go func() {
			if err := sess.Listen(); err != nil {
				logger.Warn("session transport closed", "error", err)
			}
		}()
		logger.Info("serving one UI connection", "remote", conn.RemoteAddr())
	}

	// STEP 4: wait for shutdown signal, then tear down within a bound.
	<-ctx.Done()
	logger.Info("shutdown requested")

	done := make(chan struct{})
	go func() {
		p.Stop()
		if audioSource != nil {
			_ = audioSource.Close()
		}
		if tr != nil {
			_ = tr.Close()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("graceful shutdown timed out, exiting anyway")
	}

	logger.Info("stopped")
}

func buildEngine(cfg config.Config, logger *applog.Logger) engine.Engine {
	if cfg.SoundFontPath != "" {
		if eng, err := newDemoEngine(cfg.SoundFontPath); err == nil {
			logger.Info("using SoundFont engine", "soundfont", cfg.SoundFontPath)
			return eng
		} else {
			logger.Warn("failed to load SoundFont engine, falling back to sine engine", "error", err)
		}
	}
	return engine.NewSineEngine()
}

func timeoutOrDefault(seconds float64) time.Duration {
	if seconds <= 0 {
		return session.DefaultWatchdogTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}

func parseLevel(value string) applog.Level {
	switch value {
	case "debug":
		return applog.LevelDebug
	case "warn", "warning":
		return applog.LevelWarn
	case "error":
		return applog.LevelError
	case "off":
		return applog.LevelOff
	default:
		return applog.LevelInfo
	}
}
