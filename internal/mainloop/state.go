package mainloop

import (
	"log/slog"
	"os"

	"github.com/hmcalister/connectd/internal/backend"
	"github.com/hmcalister/connectd/internal/cache"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/internal/onevent"
)

// A source of credentials handed over by remote controllers.
//
// The channel is closed only when the source has failed for good, Err then reports why.
type CredentialsStream interface {
	Credentials() <-chan connect.Credentials
	Err() error
}

// Everything needed to rebuild the audio side of a session.
type AudioSetup struct {
	Mixer   mixer.Strategy
	Backend backend.SinkBuilder
	Device  string
}

type Config struct {
	Library connect.Library
	Audio   AudioSetup

	DeviceName    string
	DeviceType    connect.DeviceType
	PlayerConfig  connect.PlayerConfig
	SessionConfig connect.SessionConfig

	// May be nil
	Cache *cache.Cache
	// May be nil
	Hook *onevent.Hook
	// May be nil, in which case no credentials ever arrive by discovery
	Discovery CredentialsStream
	// One value per received signal
	Interrupts <-chan os.Signal

	// Connected to as soon as the loop runs, if not nil
	InitialCredentials *connect.Credentials
	// Applied to every freshly built mixer, if not nil
	InitialVolume *uint16
}

// The state of the main loop. Owned by the goroutine calling Run, nothing here is locked.
//
// At most one session pair is active at any time, and a pair is only ever replaced
// after it has been told to shut down. Once shuttingDown is set it is never reset.
type LoopState struct {
	logger *slog.Logger

	library connect.Library
	audio   AudioSetup

	deviceName    string
	deviceType    connect.DeviceType
	playerConfig  connect.PlayerConfig
	sessionConfig connect.SessionConfig

	cache     *cache.Cache
	hook      *onevent.Hook
	discovery CredentialsStream

	interrupts <-chan os.Signal

	initialCredentials *connect.Credentials
	volume             *uint16

	connection   *connectionManager
	active       *sessionPair
	shuttingDown bool

	stash lookahead
}

// One-element lookahead per source. A value received while blocked in wait
// lands here, and is taken by the next step in precedence order.
type lookahead struct {
	credentials     *connect.Credentials
	discoveryClosed bool
	attempt         *attemptResult
	interrupt       bool
	taskDone        bool
	event           *connect.PlayerEvent
}

func New(config Config) *LoopState {
	logger := slog.Default().With("device name", config.DeviceName)
	return &LoopState{
		logger:             logger,
		library:            config.Library,
		audio:              config.Audio,
		deviceName:         config.DeviceName,
		deviceType:         config.DeviceType,
		playerConfig:       config.PlayerConfig,
		sessionConfig:      config.SessionConfig,
		cache:              config.Cache,
		hook:               config.Hook,
		discovery:          config.Discovery,
		interrupts:         config.Interrupts,
		initialCredentials: config.InitialCredentials,
		volume:             config.InitialVolume,
		connection:         newConnectionManager(logger, config.Library),
	}
}

// Whether an interrupt has started the teardown.
func (s *LoopState) ShuttingDown() bool {
	return s.shuttingDown
}
