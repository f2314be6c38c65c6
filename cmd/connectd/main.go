package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hmcalister/connectd/cmd/config"
	"github.com/hmcalister/connectd/internal/backend"
	"github.com/hmcalister/connectd/internal/engine"
	"github.com/hmcalister/connectd/internal/setup"
	"github.com/hmcalister/connectd/internal/utils"
	"github.com/spf13/pflag"
)

func defineFlags(flags *pflag.FlagSet) {
	// Bound to the config keys of the same name, see config.LoadConfig
	flags.String("loglevel", "", "Log level: none, error, warn, info, debug.")
	flags.String("logfile", "", "Append JSON logs to this file instead of writing to stderr.")
	flags.BoolP("verbose", "v", false, "Shorthand for --loglevel debug.")
	flags.StringP("username", "u", "", "Username to sign in with.")
	flags.StringP("password", "p", "", "Password to sign in with.")
	flags.String("cache-path", "", "Directory to cache credentials and volume in.")
	flags.StringP("backend", "b", "", "Audio backend, see --backends.")
	flags.StringP("device", "d", "", "Audio device of the backend, e.g. a file path.")
	flags.String("volume-controller", "", "Volume controller: softvol, alsa, alsa_linear.")
	flags.String("control", "", "Alsa control device.")
	flags.String("mixer", "", "Alsa mixer element.")
	flags.Int("initial-volume", -1, "Initial volume in percent, -1 keeps the last volume.")
	flags.StringP("device-name", "n", "", "Name advertised to remote controllers.")
	flags.String("device-type", "", "Device type advertised to remote controllers.")
	flags.Int("bitrate", 0, "Bitrate in kbps: 96, 160 or 320.")
	flags.Bool("volume-normalisation", false, "Enable volume normalisation.")
	flags.Float64("normalisation-pregain", 0, "Normalisation pregain in dB.")
	flags.String("onevent", "", "Program to run on player events.")
	flags.Int("zeroconf-port", 0, "Port of the discovery listener, 0 picks a free port.")
	flags.Bool("disable-discovery", false, "Do not listen for remote controllers.")
	flags.String("engine-url", "", "Websocket URL of the playback engine.")
}

func main() {
	os.Exit(run())
}

func run() int {
	defer utils.LogPanic()

	configFilePath := pflag.String("config", "config.yaml", "Set the file path to the config file.")
	listBackends := pflag.Bool("backends", false, "List the available audio backends and exit.")
	defineFlags(pflag.CommandLine)
	pflag.Parse()

	if *listBackends {
		for _, b := range backend.Backends {
			fmt.Println(b.Name)
		}
		return 0
	}

	cfg, err := config.LoadConfig(*configFilePath, pflag.CommandLine)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		return 1
	}
	logFilePointer, err := utils.ConfigureDefaultLogger(
		cfg.LogLevel,
		cfg.LogFile,
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		return 1
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}
	if cfg.BackendDefaulted {
		slog.Info("no backend specified, defaulting to", "backend", cfg.Backend.Name)
	}

	// --------------------------------------------------------------------------------

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	daemon, err := setup.Initialize(cfg, engine.New(), interrupts)
	if err != nil {
		slog.Error("could not start daemon", "err", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if daemon.Discovery != nil {
		go func() {
			defer utils.LogPanic()
			daemon.Discovery.Run(ctx)
		}()
	}

	// --------------------------------------------------------------------------------

	err = daemon.Loop.Run(ctx)
	cancel()
	daemon.Hook.Wait()
	if err != nil {
		slog.Error("main loop failed", "err", err)
		return 1
	}
	slog.Info("exiting")
	return 0
}
