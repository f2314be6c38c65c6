package setup

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hmcalister/connectd/cmd/config"
	"github.com/hmcalister/connectd/internal/cache"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/credentials"
	"github.com/hmcalister/connectd/internal/discovery"
	"github.com/hmcalister/connectd/internal/mainloop"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/internal/onevent"
)

// Reported to the engine on authentication. Overridden at link time by release builds.
var Version = "dev"

// The pieces of a ready to run daemon.
type Daemon struct {
	Loop *mainloop.LoopState

	// nil when discovery is disabled. Must be run for credentials to arrive.
	Discovery *discovery.Listener
	Hook      *onevent.Hook

	// The credentials connected to at startup, if any
	Credentials *connect.Credentials
	DeviceID    string
}

// Assemble the initial loop state from cfg.
// Any error here is a configuration error, and the daemon should not start.
func Initialize(cfg config.DaemonConfig, library connect.Library, interrupts <-chan os.Signal) (*Daemon, error) {
	var c *cache.Cache
	if cfg.CachePath != "" {
		var err error
		c, err = cache.New(cfg.CachePath)
		if err != nil {
			slog.Error("could not open cache", "cachePath", cfg.CachePath, "err", err)
			return nil, err
		}
	}

	var cached *connect.Credentials
	if stored, ok := c.Credentials(); ok {
		cached = &stored
	}
	initialCredentials, found, err := credentials.Resolve(cfg.Username, cfg.Password, cached)
	if err != nil {
		return nil, err
	}

	// A throwaway mixer validates the mixer configuration up front and
	// provides the volume advertised before the first session
	startupMixer, err := cfg.Mixer.Build()
	if err != nil {
		return nil, fmt.Errorf("build mixer: %w", err)
	}
	initialVolume := startVolume(cfg.InitialVolume, c)
	advertisedVolume := startupMixer.Volume()
	if initialVolume != nil {
		advertisedVolume = *initialVolume
	}

	deviceID := connect.DeviceID(cfg.DeviceName)
	daemon := &Daemon{
		Hook:     onevent.New(cfg.OnEvent),
		DeviceID: deviceID,
	}
	if found {
		daemon.Credentials = &initialCredentials
	}

	loopConfig := mainloop.Config{
		Library: library,
		Audio: mainloop.AudioSetup{
			Mixer:   cfg.Mixer,
			Backend: cfg.Backend.Build,
			Device:  cfg.Device,
		},
		DeviceName:   cfg.DeviceName,
		DeviceType:   cfg.DeviceType,
		PlayerConfig: cfg.Player,
		SessionConfig: connect.SessionConfig{
			UserAgent: "connectd/" + Version,
			DeviceID:  deviceID,
			EngineURL: cfg.EngineURL,
		},
		Cache:              c,
		Hook:               daemon.Hook,
		Interrupts:         interrupts,
		InitialCredentials: daemon.Credentials,
		InitialVolume:      initialVolume,
	}

	if cfg.DisableDiscovery {
		slog.Info("discovery disabled")
	} else {
		daemon.Discovery = discovery.New(discovery.Config{
			Identity: connect.ConnectConfig{
				Name:         cfg.DeviceName,
				DeviceType:   cfg.DeviceType,
				Volume:       advertisedVolume,
				LinearVolume: cfg.Mixer.LinearVolume(),
			},
			DeviceID: deviceID,
			Port:     cfg.ZeroconfPort,
		})
		loopConfig.Discovery = daemon.Discovery
	}

	daemon.Loop = mainloop.New(loopConfig)
	slog.Info("daemon initialized",
		"deviceName", cfg.DeviceName,
		"deviceID", deviceID,
		"backend", cfg.Backend.Name,
		"hasCredentials", found,
	)
	return daemon, nil
}

// The configured volume in percent wins over the cached one. nil keeps the mixer's own.
func startVolume(percent int, c *cache.Cache) *uint16 {
	if percent >= 0 {
		volume := uint16(percent * mixer.MaxVolume / 100)
		return &volume
	}
	if volume, ok := c.Volume(); ok {
		return &volume
	}
	return nil
}
