package engine

import "github.com/hmcalister/connectd/internal/connect"

// Message types of the engine protocol. Control messages are JSON text frames,
// audio arrives as binary frames of s16le stereo 44.1kHz PCM.
const (
	// client -> engine
	msgAuth    = "auth"
	msgHello   = "hello"
	msgGoodbye = "goodbye"

	// engine -> client
	msgAuthOK       = "auth_ok"
	msgAuthFailed   = "auth_failed"
	msgVolume       = "volume"
	msgPlay         = "play"
	msgPause        = "pause"
	msgStop         = "stop"
	msgTrackChanged = "track_changed"
	msgTakeover     = "takeover"
)

type message struct {
	Type string `json:"type"`

	// auth
	DeviceID  string           `json:"device_id,omitempty"`
	UserAgent string           `json:"user_agent,omitempty"`
	Username  string           `json:"username,omitempty"`
	AuthType  connect.AuthType `json:"auth_type,omitempty"`
	AuthData  []byte           `json:"auth_data,omitempty"`

	// auth_ok, reusable credentials to cache
	Credentials *connect.Credentials `json:"credentials,omitempty"`

	// hello
	Device  *connect.ConnectConfig `json:"device,omitempty"`
	Bitrate connect.Bitrate        `json:"bitrate,omitempty"`

	// auth_failed, takeover
	Reason string `json:"reason,omitempty"`

	// volume
	Volume *uint16 `json:"volume,omitempty"`

	// track_changed
	TrackID string `json:"track_id,omitempty"`
}
