package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"github.com/StevenZev/ExpressDiff/internal/app/router"
	"github.com/StevenZev/ExpressDiff/internal/controller"
	"github.com/StevenZev/ExpressDiff/internal/module/meta"
	"github.com/StevenZev/ExpressDiff/internal/module/runs"
	"github.com/StevenZev/ExpressDiff/internal/pkg/log"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
	"github.com/StevenZev/ExpressDiff/internal/store"
	"github.com/StevenZev/ExpressDiff/internal/tmpl"
)

func main() {
	var (
		logOutput          string
		logFormat          string
		logFile            string
		logLevel           string
		schedulerTimeout   time.Duration
		accountsTimeout    time.Duration
		srvListenAddr      string
		srvShutdownTimeout time.Duration
	)

	app := kingpin.New(filepath.Base(os.Args[0]), "ExpressDiff pipeline orchestrator.")
	app.HelpFlag.Short('h')
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Flag("scheduler.timeout", "Timeout for submit/status/cancel calls to the batch scheduler (Go duration, e.g. 30s).").Default("30s").DurationVar(&schedulerTimeout)
	app.Flag("scheduler.accounts-timeout", "Timeout for charge-account discovery (Go duration, e.g. 2m).").Default("2m").DurationVar(&accountsTimeout)
	app.Flag("server.listen-addr", "Server listen address (e.g. :8080 or 127.0.0.1:8080).").Default(":8081").StringVar(&srvListenAddr)
	app.Flag("server.shutdown-timeout", "Graceful shutdown timeout (e.g. 10s).").Default("10s").DurationVar(&srvShutdownTimeout)

	app.PreAction(func(*kingpin.ParseContext) error {
		if strings.EqualFold(logOutput, "file") {
			if !isValidFilePath(logFile) {
				return fmt.Errorf("invalid --log.file path: %q", logFile)
			}
		}
		return nil
	})
	app.Version(version.Print("expressdiff"))

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	logger, logClose, err := log.NewLogger(logOutput, logFormat, logFile, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	paths, err := runpath.Resolve()
	if err != nil {
		logger.Error("unable to resolve install/work directories", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("resolved paths", slog.String("install_dir", paths.InstallDir), slog.String("work_dir", paths.WorkDir))

	st := store.New(paths)
	gw := scheduler.New(scheduler.ExecRunner{}, schedulerTimeout, accountsTimeout, logger, paths.InstallDir)
	engine := tmpl.New(paths)
	ctrl := controller.New(st, gw, engine, logger)

	r := router.New(logger)
	router.Register(
		meta.NewRouter(gw, paths, logger),
		runs.NewRouter(ctrl, logger),
	)
	router.Mount(r)

	srv := &http.Server{
		Addr:              srvListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srvListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	case <-quit:
		// proceed to shutdown
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
}

// isValidFilePath performs a light-weight validation for file paths. It
// accepts both absolute and relative paths and rejects empty paths or
// paths that end with a path separator (which usually indicate a directory).
func isValidFilePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	if strings.HasSuffix(p, string(os.PathSeparator)) {
		return false
	}
	base := filepath.Base(p)
	if base == "." || base == string(os.PathSeparator) {
		return false
	}
	return true
}
