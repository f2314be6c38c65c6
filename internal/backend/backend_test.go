package backend

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDefaultsToFirstBackend(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)
	var logs bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))

	b, err := Find(Backends, "")
	require.NoError(t, err)
	assert.Equal(t, "pipe", b.Name)
	assert.Empty(t, logs.String(), "lookups run before the logger is configured, so they log nothing")
}

func TestFindIsCaseSensitive(t *testing.T) {
	b, err := Find(Backends, "wav")
	require.NoError(t, err)
	assert.Equal(t, "wav", b.Name)

	_, err = Find(Backends, "WAV")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestFindEmptyRegistry(t *testing.T) {
	_, err := Find(nil, "")
	assert.ErrorIs(t, err, ErrNoBackends)
	_, err = Find([]Backend{}, "pipe")
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "pipe, wav, null", Names(Backends))
}

func TestPipeBackendWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	b, err := Find(Backends, "pipe")
	require.NoError(t, err)

	sink, err := b.Build(path)
	require.NoError(t, err)
	assert.Equal(t, audiodevice.PlaybackDeviceProperties, sink.GetDeviceProperties())

	stream := make(chan frame.PCMFrame)
	sink.SetStream(stream)
	stream <- frame.PCMFrame{0, 0, 0, 0}
	close(stream)
	sink.WaitForClose()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 8)
}

func TestPipeBackendAppendsAcrossSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	for range 2 {
		sink, err := openPipe(path)
		require.NoError(t, err)
		stream := make(chan frame.PCMFrame)
		sink.SetStream(stream)
		stream <- frame.PCMFrame{0, 0, 0, 0}
		close(stream)
		sink.WaitForClose()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 16, "reopening keeps the audio already written")
}

func TestNullBackend(t *testing.T) {
	b, err := Find(Backends, "null")
	require.NoError(t, err)
	sink, err := b.Build("ignored")
	require.NoError(t, err)

	stream := make(chan frame.PCMFrame)
	sink.SetStream(stream)
	stream <- frame.PCMFrame{1}
	close(stream)
	sink.WaitForClose()
}
