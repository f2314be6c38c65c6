package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/hmcalister/connectd/internal/backend"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/internal/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrInvalidInitialVolume = errors.New("initial volume must be between 0 and 100, or -1")
	ErrInvalidPort          = errors.New("invalid zeroconf port")
)

// Everything the daemon reads from its configuration, validated.
type DaemonConfig struct {
	LogLevel string
	LogFile  string

	Username  string
	Password  string
	CachePath string

	Backend backend.Backend
	// No backend was named, Backend is the registry's default
	BackendDefaulted bool
	Device  string
	Mixer   mixer.Strategy
	// Percent, -1 to keep the cached or mixer volume
	InitialVolume int

	DeviceName string
	DeviceType connect.DeviceType
	Player     connect.PlayerConfig

	OnEvent          string
	ZeroconfPort     int
	DisableDiscovery bool
	EngineURL        string
}

// Load the config file, overlay any flags set in flags, and validate the result.
//
// Flags are bound to the config key of the same name, with dashes replaced by underscores,
// so --device-name overrides device_name. A missing config file is not an error.
func LoadConfig(configFilePath string, flags *pflag.FlagSet) (DaemonConfig, error) {
	utils.SetViperDefaults()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			bindErr = errors.Join(bindErr, viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f))
		})
		if bindErr != nil {
			return DaemonConfig{}, bindErr
		}
	}

	if configFilePath != "" {
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || isNotExist(err) {
				slog.Info("no config file found", "configFilePath", configFilePath)
			} else {
				slog.Error("error during config read", "err", err)
				return DaemonConfig{}, err
			}
		}
	}

	return fromViper()
}

func fromViper() (DaemonConfig, error) {
	cfg := DaemonConfig{
		LogLevel:         viper.GetString("loglevel"),
		LogFile:          viper.GetString("logfile"),
		Username:         viper.GetString("username"),
		Password:         viper.GetString("password"),
		CachePath:        viper.GetString("cache_path"),
		Device:           viper.GetString("device"),
		InitialVolume:    viper.GetInt("initial_volume"),
		DeviceName:       viper.GetString("device_name"),
		OnEvent:          viper.GetString("onevent"),
		ZeroconfPort:     viper.GetInt("zeroconf_port"),
		DisableDiscovery: viper.GetBool("disable_discovery"),
		EngineURL:        viper.GetString("engine_url"),
	}
	if viper.GetBool("verbose") {
		cfg.LogLevel = "debug"
	}

	var errs []error
	var err error

	cfg.BackendDefaulted = viper.GetString("backend") == ""
	cfg.Backend, err = backend.Find(backend.Backends, viper.GetString("backend"))
	errs = append(errs, err)

	cfg.Mixer, err = mixer.ParseStrategy(
		viper.GetString("volume_controller"),
		viper.GetString("control"),
		viper.GetString("mixer"),
	)
	errs = append(errs, err)

	cfg.DeviceType, err = connect.ParseDeviceType(viper.GetString("device_type"))
	errs = append(errs, err)

	cfg.Player.Bitrate, err = connect.ParseBitrate(viper.GetInt("bitrate"))
	errs = append(errs, err)
	cfg.Player.Normalisation = viper.GetBool("volume_normalisation")
	cfg.Player.NormalisationPregain = float32(viper.GetFloat64("normalisation_pregain"))

	if cfg.InitialVolume < -1 || cfg.InitialVolume > 100 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidInitialVolume, cfg.InitialVolume))
	}
	if cfg.ZeroconfPort < 0 || cfg.ZeroconfPort > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, cfg.ZeroconfPort))
	}

	if err := errors.Join(errs...); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

// viper only reports ConfigFileNotFoundError when searching config paths,
// an explicit path that does not exist surfaces as a path error.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
