package setup

import (
	"testing"

	"github.com/hmcalister/connectd/cmd/config"
	"github.com/hmcalister/connectd/internal/backend"
	"github.com/hmcalister/connectd/internal/cache"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/credentials"
	"github.com/hmcalister/connectd/internal/engine"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.DaemonConfig {
	t.Helper()
	b, err := backend.Find(backend.Backends, "null")
	require.NoError(t, err)
	return config.DaemonConfig{
		LogLevel:         "info",
		CachePath:        t.TempDir(),
		Backend:          b,
		Mixer:            mixer.Software{},
		InitialVolume:    -1,
		DeviceName:       "Kitchen",
		DeviceType:       connect.DeviceTypeSpeaker,
		Player:           connect.PlayerConfig{Bitrate: connect.Bitrate160},
		DisableDiscovery: true,
	}
}

func TestInitializeWithoutCredentials(t *testing.T) {
	daemon, err := Initialize(testConfig(t), engine.New(), nil)
	require.NoError(t, err)
	assert.NotNil(t, daemon.Loop)
	assert.Nil(t, daemon.Credentials)
	assert.Nil(t, daemon.Discovery)
	assert.Nil(t, daemon.Hook)
	assert.Equal(t, connect.DeviceID("Kitchen"), daemon.DeviceID)
}

func TestInitializeUsesCachedCredentials(t *testing.T) {
	cfg := testConfig(t)
	c, err := cache.New(cfg.CachePath)
	require.NoError(t, err)
	stored := connect.Credentials{Username: "alice", AuthType: connect.AuthTypeStored, AuthData: []byte("token")}
	require.NoError(t, c.SaveCredentials(stored))

	daemon, err := Initialize(cfg, engine.New(), nil)
	require.NoError(t, err)
	require.NotNil(t, daemon.Credentials)
	assert.Equal(t, stored, *daemon.Credentials)
}

func TestInitializeUsernameWithoutPassword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Username = "bob"
	_, err := Initialize(cfg, engine.New(), nil)
	assert.ErrorIs(t, err, credentials.ErrNoPassword)
}

func TestInitializeWithDiscovery(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableDiscovery = false
	cfg.OnEvent = "true"

	daemon, err := Initialize(cfg, engine.New(), nil)
	require.NoError(t, err)
	assert.NotNil(t, daemon.Discovery)
	assert.NotNil(t, daemon.Hook)
}

func TestStartVolume(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	assert.Nil(t, startVolume(-1, c))
	require.NoError(t, c.SaveVolume(42))
	assert.Equal(t, uint16(42), *startVolume(-1, c))
	assert.Equal(t, uint16(mixer.MaxVolume), *startVolume(100, c))
	assert.Equal(t, uint16(0), *startVolume(0, nil))
}
