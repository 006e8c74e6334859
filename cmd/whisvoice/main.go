// Command whisvoice is the CLI entry point for the voice-to-text pipeline:
// it loads a YAML config, wires the configured backend/post-processor/sink,
// records from the default microphone until the user presses Enter, and
// delivers the resulting transcript to the configured sink.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/whisvoice/internal/config"
	"github.com/MrWong99/whisvoice/internal/observe"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/capture"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/segment"
	"github.com/MrWong99/whisvoice/pkg/audiopipe/vad"
	"github.com/MrWong99/whisvoice/pkg/backend/modelcache"
	"github.com/MrWong99/whisvoice/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var deviceOverride string
	var logFile string

	rootCmd := &cobra.Command{
		Use:   "whisvoice",
		Short: "Record audio and transcribe it through a configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd.Context(), configPath, deviceOverride, logFile)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&deviceOverride, "device", "d", "", "capture device name override (default: system default input)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write rotated logs to this path instead of stderr (for daemon/background use)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "whisvoice: %v\n", err)
		return 1
	}
	return 0
}

// record loads cfg, wires one pipeline session, starts recording, and waits
// for either Enter on stdin or a termination signal before stopping it.
func record(ctx context.Context, configPath, deviceOverride, logFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", configPath)
		}
		return err
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel, logFile))

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "whisvoice"})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownObserve(shutdownCtx)
	}()
	metrics := observe.DefaultMetrics()

	cache := modelcache.New()
	transcriber, kind, err := buildBackend(cfg.Backend, cache)
	if err != nil {
		return fmt.Errorf("build backend %q: %w", cfg.Backend.Name, err)
	}

	postProcess, err := buildPostProcess(cfg.PostProcess)
	if err != nil {
		return err
	}

	outputSink, err := buildSink(cfg.Sink)
	if err != nil {
		return err
	}

	pcfg := pipeline.Config{
		Capture:     capture.Config{DeviceName: deviceOverride},
		VAD:         vad.Config{Disabled: cfg.VAD.Disabled, Threshold: cfg.VAD.Threshold},
		Segment:     segment.Config{TargetDurationSecs: cfg.Segment.TargetDurationSecs, VADAware: cfg.Segment.VADAware},
		Kind:        kind,
		Transcriber: transcriber,
		Language:    cfg.Backend.Language,
		PostProcess: postProcess,
		Sink:        outputSink,
	}

	handle, err := pipeline.Start(pcfg)
	if err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	metrics.ActivePipelines.Add(ctx, 1)
	defer metrics.ActivePipelines.Add(context.Background(), -1)

	slog.Info("recording started — press Enter or Ctrl+C to stop", "backend", cfg.Backend.Name)

	waitForStop(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	text, err := handle.Stop(stopCtx)
	if err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}

	slog.Info("transcript delivered", "chars", len(text))
	return nil
}

// waitForStop blocks until either Enter is read from stdin or ctx is
// cancelled by a termination signal, whichever comes first.
func waitForStop(ctx context.Context) {
	enter := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	select {
	case <-enter:
	case <-ctx.Done():
	}
}

// newLogger builds the application logger. When logFile is set, output is
// routed through a lumberjack.Logger so long-running (daemon-mode) sessions
// rotate their log rather than growing without bound; otherwise output goes
// straight to stderr.
func newLogger(level config.LogLevel, logFile string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
