package engine

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/mixer"
)

const handshakeTimeout = 10 * time.Second

// A connect.Library backed by an external playback engine, reached over a websocket.
type Library struct {
	dialer *websocket.Dialer
}

func New() *Library {
	return &Library{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (l *Library) Connect(
	ctx context.Context,
	config connect.SessionConfig,
	credentials connect.Credentials,
	store connect.CredentialStore,
) (connect.Session, error) {
	session, err := dialSession(ctx, l.dialer, config, credentials, store)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// session must come from Connect.
func (l *Library) NewPlayer(
	config connect.PlayerConfig,
	session connect.Session,
	filter mixer.AudioFilter,
	sinkBuilder connect.SinkBuilder,
) connect.Player {
	return newPlayer(config, session.(*Session), filter, sinkBuilder)
}

// session and player must come from this Library. A foreign player makes the task
// fail as soon as it runs.
func (l *Library) NewSpirc(
	config connect.ConnectConfig,
	session connect.Session,
	player connect.Player,
	m mixer.Mixer,
) (connect.ControlHandle, connect.ControlTask) {
	s := session.(*Session)
	logger := s.logger.With("component", "spirc")

	handle := &SpircHandle{
		logger:   logger,
		shutdown: make(chan struct{}),
	}
	p, _ := player.(*Player)
	return handle, &Spirc{
		logger:  logger,
		config:  config,
		session: s,
		player:  p,
		mixer:   m,
		handle:  handle,
	}
}
