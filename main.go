// Command crowdview is a live dashboard for a crowd-analytics video
// stream: it consumes the producer's WebSocket feed and serves charts, the
// latest frame and anomaly alerts over HTTP and WebSocket.
//
// Usage:
//
//	crowdview [run|validate|version|install|uninstall|start|stop|restart]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/kardianos/service"
	"go.uber.org/zap"

	"crowdview/core"
	"crowdview/core/validation"
	"crowdview/logging"
	"crowdview/shutdown"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "version", "-v", "--version":
		fmt.Println("crowdview", core.GetVersionInfo())
		return core.ExitCodeSuccess
	case "validate":
		return runValidate()
	case "install", "uninstall", "start", "stop", "restart":
		return controlService(cmd)
	case "run":
	default:
		printUsage()
		return core.ExitCodeError
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "configuration error: %v\n", err)
		return core.ExitCodeConfig
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	logger.Info("configuration loaded",
		zap.String("stream_url", cfg.StreamURL),
		zap.String("config_file", cfg.ConfigPath),
		zap.Duration("batch_interval", cfg.BatchInterval),
		zap.Int("batch_max_messages", cfg.BatchMaxMessages),
		zap.Float64("anomaly_score_threshold", cfg.AnomalyScoreThreshold),
		zap.String("webui_addr", cfg.WebUIAddr()),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	if !service.Interactive() {
		if err := runService(cfg, logger); err != nil {
			logger.Error("service failed", zap.Error(err))
			logger.Sync()
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}

	mgr := shutdown.NewManager(logger.Zap())
	mgr.Start()
	if err := runViewer(cfg, logger, mgr); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		return core.ExitCodeError
	}
	return mgr.ExitCode()
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	opts := logging.Options{
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
	}
	if cfg.LogLevel != "" && logging.IsValidLevel(cfg.LogLevel) {
		opts.Level = logging.ParseLogLevelString(cfg.LogLevel, opts.Level)
		opts.LevelSet = true
	}
	return logging.New(opts)
}

// runValidate checks the configuration and probes the stream, printing a
// coloured report.
func runValidate() int {
	cfg, err := core.LoadConfig()
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "✗ %v\n", err)
		return core.ExitCodeConfig
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := validation.NewValidationSuite(cfg).
		WithEnvPath(cfg.EnvPath).
		Validate(ctx)
	if !result.Success {
		return core.ExitCodeConfig
	}
	return core.ExitCodeSuccess
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: crowdview [run|validate|version|install|uninstall|start|stop|restart]")
}
