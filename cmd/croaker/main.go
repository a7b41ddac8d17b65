// Command croaker is the daemon and CLI client described in spec.md §6,
// grounded on main.go's flag-driven bootstrap but restructured around
// cobra subcommands the way _examples/kdeps-kdeps drives its CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumralcem/croaker/internal/audiorec"
	"github.com/kumralcem/croaker/internal/config"
	"github.com/kumralcem/croaker/internal/diag"
	"github.com/kumralcem/croaker/internal/feedback"
	"github.com/kumralcem/croaker/internal/inject"
	"github.com/kumralcem/croaker/internal/inputsrc"
	"github.com/kumralcem/croaker/internal/logging"
	"github.com/kumralcem/croaker/internal/session"
	"github.com/kumralcem/croaker/internal/transcribe"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "croaker",
		Short:   "Push-to-talk speech-to-text daemon",
		Version: version,
	}

	root.AddCommand(
		serveCmd(),
		clientCmd("toggle"),
		clientCmd("cancel"),
		clientCmd("status"),
		clientCmd("toggle-output-mode"),
		clientCmd("toggle-language"),
		doctorCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var logDir string
	var console bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the croaker daemon until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logDir, console)
		},
	}
	cmd.Flags().StringVar(&logDir, "log-dir", "", "override the log directory")
	cmd.Flags().BoolVar(&console, "console", false, "also log to stderr")
	return cmd
}

func runServe(logDirOverride string, console bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logDir, err := logging.ResolveDir(logDirOverride)
	if err != nil {
		return fmt.Errorf("resolving log dir: %w", err)
	}
	if err := logging.Init(logDir, console); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()

	socketPath, err := inputsrc.SocketPath()
	if err != nil {
		return fmt.Errorf("resolving socket path: %w", err)
	}
	listener, err := inputsrc.Bind(socketPath)
	if err != nil {
		if err == inputsrc.ErrDaemonAlreadyRunning {
			fmt.Fprintln(os.Stderr, "croaker: a daemon is already running")
			return err
		}
		return fmt.Errorf("binding socket: %w", err)
	}
	defer os.Remove(socketPath)

	cacheDir, err := config.CacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache dir: %w", err)
	}

	apiKey, err := config.LoadAPIKey(cfg.Groq.KeyFile)
	if err != nil {
		return fmt.Errorf("loading Groq API key: %w", err)
	}

	recorder := audiorec.New(cacheDir, cfg.Audio.Command)
	requestTimeout := time.Duration(cfg.Groq.RequestTimeoutSec) * time.Second
	transcriber := transcribe.NewClient(apiKey, cfg.Groq.WhisperModel, requestTimeout)
	go transcriber.Warm()

	var cleaner *transcribe.CleanupClient
	if cfg.Groq.CleanupEnabled {
		prompt, err := config.LoadCleanupPrompt(cfg.Groq.CleanupPromptFile)
		if err != nil {
			return fmt.Errorf("loading cleanup prompt: %w", err)
		}
		cleaner, err = transcribe.NewCleanupClient(apiKey, cfg.Groq.CleanupModel, prompt, cfg.Groq.CleanupTemperature)
		if err != nil {
			return fmt.Errorf("building cleanup client: %w", err)
		}
	}

	notifier := feedback.NewNotifier()
	tray := feedback.NewTray()
	sink := feedback.NewMultiSink(tray, notifier)

	injector := buildInjector(cfg, notifier)

	settings := session.RuntimeSettings{
		Languages:        cfg.General.Languages,
		CurrentLanguage:  cfg.General.Language,
		OutputMode:       cfg.Output.OutputMode,
		KeystrokeDelay:   time.Duration(cfg.Output.KeystrokeDelayMs) * time.Millisecond,
		ClipboardRestore: cfg.Output.ClipboardRestore,
	}

	var ctrl *session.Controller
	if cleaner != nil {
		ctrl = session.New(recorder, transcriber, cleaner, injector, sink, settings)
	} else {
		ctrl = session.New(recorder, transcriber, nil, injector, sink, settings)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ctrl.Run(ctx)
	go tray.Run()

	sources := buildInputSources(cfg, listener, ctrl)
	for _, src := range sources {
		go src(ctx)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	logging.Info("croaker daemon started")
	select {
	case <-sig:
		logging.Info("shutdown signal received")
	case <-tray.Done():
		logging.Info("quit requested from tray")
	}

	cancel()
	tray.Quit()
	return nil
}

func buildInjector(cfg config.Config, notifier *feedback.Notifier) *inject.Injector {
	wayland := inject.NewWaylandTyper()
	x11 := inject.NewX11Typer(time.Duration(cfg.Output.KeystrokeDelayMs) * time.Millisecond)
	clip := inject.SystemClipboard{}
	return inject.New(wayland, x11, clip, cfg.Output.ClipboardRestore, notifier.NotifyManualPaste)
}

func buildInputSources(cfg config.Config, listener net.Listener, ctrl *session.Controller) []func(context.Context) {
	var runners []func(context.Context)

	if key, ok := inputsrc.ParseKey(cfg.Hotkeys.PushToTalkKey); ok && cfg.Hotkeys.PushToTalkEnabled {
		var chords []inputsrc.Chord
		if c, ok := inputsrc.ParseChord(cfg.Hotkeys.OutputModeShortcut, session.EvToggleOutputMode); ok {
			chords = append(chords, c)
		}
		if c, ok := inputsrc.ParseChord(cfg.Hotkeys.LanguageShortcut, session.EvToggleLanguage); ok {
			chords = append(chords, c)
		}
		if c, ok := inputsrc.ParseChord(cfg.Hotkeys.CancelShortcut, session.EvCancel); ok {
			chords = append(chords, c)
		}
		evdev := inputsrc.NewEvdevSource(key, chords, ctrl)
		runners = append(runners, evdev.Run)
	} else {
		logging.Warnf("push-to-talk key %q unrecognized or disabled; evdev source not started", cfg.Hotkeys.PushToTalkKey)
	}

	if cfg.Hotkeys.ToggleEnabled {
		portal := inputsrc.NewPortalSource(ctrl, ctrl)
		runners = append(runners, portal.Run)
	}

	socket := inputsrc.NewSocketSource(listener, ctrl, ctrl)
	runners = append(runners, socket.Run)

	return runners
}

// clientCmd builds a thin CLI subcommand that connects to the daemon
// socket, writes the command name, prints the single-line reply, and
// exits 0 on "ok", 1 on "error", 2 if the daemon isn't reachable.
func clientCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Send %q to the running daemon", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(sendCommand(name))
			return nil
		},
	}
}

func sendCommand(name string) int {
	path, err := inputsrc.SocketPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "croaker:", err)
		return 2
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "croaker: daemon is not running")
		return 2
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	fmt.Fprintln(conn, name)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "croaker: no reply from daemon")
		return 2
	}

	fmt.Print(reply)
	if len(reply) >= 2 && reply[:2] == "ok" {
		return 0
	}
	if len(reply) >= 5 && reply[:5] == "error" {
		return 1
	}
	return 0 // "status" replies are informational, not pass/fail
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			os.Exit(diag.Run(cfg))
			return nil
		},
	}
}
