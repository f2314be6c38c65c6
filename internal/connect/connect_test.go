package connect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceIDIsStable(t *testing.T) {
	a := DeviceID("kitchen")
	assert.Equal(t, a, DeviceID("kitchen"))
	assert.NotEqual(t, a, DeviceID("bedroom"))
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
}

func TestParseDeviceType(t *testing.T) {
	deviceType, err := ParseDeviceType("Speaker")
	require.NoError(t, err)
	assert.Equal(t, DeviceTypeSpeaker, deviceType)

	_, err = ParseDeviceType("toaster")
	assert.ErrorIs(t, err, ErrUnknownDeviceType)
}

func TestParseBitrate(t *testing.T) {
	for _, kbps := range []int{96, 160, 320} {
		b, err := ParseBitrate(kbps)
		require.NoError(t, err)
		assert.Equal(t, Bitrate(kbps), b)
	}
	_, err := ParseBitrate(128)
	assert.ErrorIs(t, err, ErrInvalidBitrate)
}

func TestCredentialsNeverPrintAuthData(t *testing.T) {
	c := PasswordCredentials("alice", "hunter2")
	assert.Equal(t, "alice (password)", fmt.Sprint(c))
	assert.NotContains(t, fmt.Sprintf("%v", c), "hunter2")
}
