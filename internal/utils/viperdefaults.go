package utils

import (
	"os"

	"github.com/spf13/viper"
)

const DefaultEngineURL = "ws://127.0.0.1:4070/session"

// Set the viper defaults for connectd.
func SetViperDefaults() {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("username", "")
	viper.SetDefault("password", "")
	viper.SetDefault("cache_path", "")

	viper.SetDefault("backend", "")
	viper.SetDefault("device", "")
	viper.SetDefault("volume_controller", "softvol")
	// alsa control device, and the mixer element on it
	viper.SetDefault("control", "default")
	viper.SetDefault("mixer", "Master")
	viper.SetDefault("initial_volume", -1)

	viper.SetDefault("device_name", "connectd@"+hostname)
	viper.SetDefault("device_type", "speaker")
	viper.SetDefault("bitrate", 160)
	viper.SetDefault("volume_normalisation", false)
	viper.SetDefault("normalisation_pregain", 0.0)

	viper.SetDefault("onevent", "")
	viper.SetDefault("zeroconf_port", 0)
	viper.SetDefault("disable_discovery", false)
	viper.SetDefault("engine_url", DefaultEngineURL)
}
