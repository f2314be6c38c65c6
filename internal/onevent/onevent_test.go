package onevent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hmcalister/connectd/internal/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookPassesEventInEnvironment(t *testing.T) {
	out := filepath.Join(t.TempDir(), "event")
	hook := New(`printf '%s %s %s' "$PLAYER_EVENT" "$TRACK_ID" "$OLD_TRACK_ID" > ` + out)
	require.NotNil(t, hook)

	hook.Handle(context.Background(), connect.PlayerEvent{
		Type:       connect.PlayerEventChange,
		TrackID:    "new",
		OldTrackID: "old",
	})
	hook.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "change new old", string(data))
}

func TestFailingProgramIsNotFatal(t *testing.T) {
	hook := New("exit 3")
	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventStop})
	hook.Wait()
}

func TestNilHookDropsEvents(t *testing.T) {
	hook := New("")
	assert.Nil(t, hook)
	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventStart})
	hook.Wait()
}

func TestHookRunsProgramsInEventOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events")
	hook := New(`if [ "$PLAYER_EVENT" = start ]; then sleep 0.3; fi; echo "$PLAYER_EVENT" >> ` + out)

	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventStart})
	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventPause})
	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventStop})
	hook.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "start\npause\nstop\n", string(data))
}

func TestHookDropsEventsAfterWait(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events")
	hook := New("echo ran >> " + out)
	hook.Wait()

	hook.Handle(context.Background(), connect.PlayerEvent{Type: connect.PlayerEventStart})
	hook.Wait()

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}
