package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS16LERoundTrip(t *testing.T) {
	data := []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80}

	pcmFrame := FromS16LE(data)
	require.Len(t, pcmFrame, 3)
	assert.Equal(t, float32(0), pcmFrame[0])
	assert.Equal(t, float32(1), pcmFrame[1])
	assert.Equal(t, float32(-1), pcmFrame[2])

	assert.Equal(t, data, pcmFrame.AppendS16LE(nil))
}

func TestFromS16LEIgnoresTrailingByte(t *testing.T) {
	assert.Len(t, FromS16LE([]byte{0x00, 0x10, 0x20}), 1)
}

func TestAppendS16LEClips(t *testing.T) {
	clipped := PCMFrame{2.5, -3}.AppendS16LE(nil)
	assert.Equal(t, PCMFrame{1, -1}.AppendS16LE(nil), clipped)
}
