package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/utils"
)

var (
	ErrAuthFailed      = errors.New("engine rejected credentials")
	ErrUnexpectedReply = errors.New("unexpected reply from engine")
)

const (
	writeTimeout = 10 * time.Second
	authTimeout  = 30 * time.Second

	inboundBuffer = 64
)

type inbound struct {
	messageType int
	data        []byte
}

// An authenticated connection to the engine.
type Session struct {
	logger   *slog.Logger
	uuid     uuid.UUID
	username string
	conn     *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}

	// Every frame read from the engine, in order. Closed when the connection drops.
	inbound chan inbound
	readErr error
}

func (s *Session) Username() string {
	return s.username
}

// Close the connection to the engine, unregistering the device.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		closeErr := s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()
		if errors.Is(closeErr, websocket.ErrCloseSent) {
			closeErr = nil
		}
		err = errors.Join(closeErr, s.conn.Close())
		s.logger.Debug("session closed")
	})
	return err
}

func (s *Session) send(msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Error("could not write to engine", "type", msg.Type, "err", err)
		return err
	}
	return nil
}

// Read every frame off the connection until it fails.
// Only ever run by one goroutine, started once authentication succeeded.
func (s *Session) readPump() {
	defer utils.LogPanic()
	defer close(s.inbound)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = err
			s.logger.Debug("engine connection read finished", "err", err)
			return
		}
		select {
		case s.inbound <- inbound{messageType: messageType, data: data}:
		case <-s.closed:
			return
		}
	}
}

// --------------------------------------------------------------------------------

// Dial the engine and authenticate. ctx bounds the whole handshake, cancelling it
// closes the connection.
func dialSession(
	ctx context.Context,
	dialer *websocket.Dialer,
	config connect.SessionConfig,
	credentials connect.Credentials,
	store connect.CredentialStore,
) (*Session, error) {
	sessionUUID := uuid.New()
	logger := slog.Default().With(
		"session uuid", sessionUUID,
		"username", credentials.Username,
	)

	conn, _, err := dialer.DialContext(ctx, config.EngineURL, nil)
	if err != nil {
		logger.Error("could not dial engine", "engineURL", config.EngineURL, "err", err)
		return nil, fmt.Errorf("dial engine: %w", err)
	}

	// Unblocks the handshake read below if ctx ends first
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	reply, err := authenticate(conn, config, credentials)
	if !stop() {
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		logger.Warn("engine authentication failed", "err", err)
		return nil, err
	}

	username := credentials.Username
	if reply.Credentials != nil {
		if reply.Credentials.Username != "" {
			username = reply.Credentials.Username
		}
		if store != nil {
			if err := store.SaveCredentials(*reply.Credentials); err != nil {
				logger.Warn("could not cache reusable credentials", "err", err)
			}
		}
	}

	session := &Session{
		logger:   logger,
		uuid:     sessionUUID,
		username: username,
		conn:     conn,
		closed:   make(chan struct{}),
		inbound:  make(chan inbound, inboundBuffer),
	}
	go session.readPump()
	logger.Info("session established")
	return session, nil
}

func authenticate(conn *websocket.Conn, config connect.SessionConfig, credentials connect.Credentials) (message, error) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(message{
		Type:      msgAuth,
		DeviceID:  config.DeviceID,
		UserAgent: config.UserAgent,
		Username:  credentials.Username,
		AuthType:  credentials.AuthType,
		AuthData:  credentials.AuthData,
	}); err != nil {
		return message{}, fmt.Errorf("send auth: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return message{}, fmt.Errorf("read auth reply: %w", err)
	}
	if messageType != websocket.TextMessage {
		return message{}, fmt.Errorf("%w: binary frame during authentication", ErrUnexpectedReply)
	}

	var reply message
	if err := json.Unmarshal(data, &reply); err != nil {
		return message{}, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	switch reply.Type {
	case msgAuthOK:
		return reply, nil
	case msgAuthFailed:
		return message{}, fmt.Errorf("%w: %s", ErrAuthFailed, reply.Reason)
	}
	return message{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, reply.Type)
}
