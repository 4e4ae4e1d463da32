// Package main is the entry point for the wildmidi API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/james-see/gowildmidi/internal/app"
	"github.com/james-see/gowildmidi/pkg/api"
	"github.com/james-see/gowildmidi/pkg/logger"
)

func main() {
	settings := app.DefaultSettings()
	port := flag.Int("port", 8080, "Server port")
	flag.StringVar(&settings.ConfigPath, "config", "", "Patch config (native) or SoundFont (sf2)")
	flag.IntVar(&settings.SampleRate, "rate", settings.SampleRate, "Output sample rate in Hz")
	flag.IntVar(&settings.Volume, "volume", settings.Volume, "Master volume, 0-127")
	flag.StringVar(&settings.Engine, "engine", settings.Engine, "Synthesis engine (native, sf2)")
	flag.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level")
	flag.Parse()

	if err := run(*port, settings); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(port int, settings app.Settings) error {
	if err := logger.Init(settings.LogLevel); err != nil {
		return err
	}
	lib, session, err := settings.Open(logger.Get())
	if err != nil {
		return err
	}
	defer lib.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("Starting wildmidi API server on port %d (%s)...\n", port, session.Version())
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return api.StartServer(ctx, addr, session, logger.Get(), api.DefaultOptions())
}
