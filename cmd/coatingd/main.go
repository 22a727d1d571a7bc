// coatingd is the coating host daemon. It serves the generation API, the
// program store, the run history and Prometheus metrics over HTTP, with
// live progress notifications over a websocket.
//
// Usage:
//
//	coatingd [options]
//
// Options:
//
//	-config string    Host configuration file (ini)
//	-listen string    Listen address override (default from config)
//	-data-dir string  Data directory override
//	-logfile string   Log file path (default: stderr)
//	-level string     Log level: debug, info, warn, error
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"coating-host/pkg/api"
	"coating-host/pkg/config"
	"coating-host/pkg/history"
	"coating-host/pkg/log"
)

func main() {
	configFile := flag.String("config", "", "Host configuration file")
	listen := flag.String("listen", "", "Listen address override")
	dataDir := flag.String("data-dir", "", "Data directory override")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	level := flag.String("level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := log.New("coatingd")
	logger.SetWriter(os.Stderr)
	logger.SetLevel(log.ParseLevel(*level))
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetWriter(f)
		logger.SetColorize(false)
	}

	settings := config.DefaultSettings()
	if *configFile != "" {
		var err error
		settings, err = config.LoadSettings(*configFile)
		if err != nil {
			logger.Error("config: %v", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		settings.Server.Listen = *listen
	}
	if *dataDir != "" {
		settings.Server.DataDir = *dataDir
	}
	settings.Server.DataDir = expandHome(settings.Server.DataDir)

	historyPath := settings.Server.HistoryPath
	if historyPath == "" {
		historyPath = filepath.Join(settings.Server.DataDir, "history.db")
	} else {
		historyPath = expandHome(historyPath)
	}

	store, err := history.Open(historyPath)
	if err != nil {
		logger.Error("history: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	server, err := api.New(api.Config{
		Settings: settings,
		History:  store,
		Logger:   logger.WithPrefix("api"),
	})
	if err != nil {
		logger.Error("server: %v", err)
		os.Exit(1)
	}

	logger.Info("coating host %s starting", api.Version)
	logger.Info("data dir: %s", settings.Server.DataDir)
	logger.Info("history:  %s", historyPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server: %v", err)
			os.Exit(1)
		}
	}
}

// expandHome resolves a leading ~ against the current user's home dir.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
