package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/metrics"
	"github.com/hmcalister/connectd/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	zeroconfPath    = "/"
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second

	statusOK         = 101
	statusBadRequest = 102
)

var (
	ErrListenerStopped = errors.New("discovery listener stopped")
)

type Config struct {
	// The identity answered to getInfo, fixed for the lifetime of the listener
	Identity connect.ConnectConfig
	DeviceID string

	// 0 picks a free port
	Port int

	DisableMDNS bool
}

// Listens for remote controllers selecting this device.
//
// Every successful addUser request yields one set of credentials on Credentials().
// The channel is closed only once the listener has stopped, after which Err reports why.
type Listener struct {
	logger *slog.Logger
	config Config

	credentials chan connect.Credentials

	mu         sync.Mutex
	stopped    bool
	stopping   chan struct{}
	inflight   sync.WaitGroup
	err        error
	activeUser string
}

func New(config Config) *Listener {
	return &Listener{
		logger: slog.Default().With(
			"discovery device id", config.DeviceID,
		),
		config:      config,
		credentials: make(chan connect.Credentials),
		stopping:    make(chan struct{}),
	}
}

func (l *Listener) Credentials() <-chan connect.Credentials {
	return l.credentials
}

// Why the listener stopped. nil while it is running.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Serve the zeroconf endpoints and the mDNS responder until ctx is cancelled
// or either of them fails. Always returns a non-nil error, the same as Err.
func (l *Listener) Run(ctx context.Context) error {
	err := l.serve(ctx)
	if err == nil {
		err = ErrListenerStopped
	}
	l.stop(err)
	return err
}

func (l *Listener) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", l.config.Port))
	if err != nil {
		l.logger.Error("could not listen for discovery", "port", l.config.Port, "err", err)
		return err
	}
	port := listener.Addr().(*net.TCPAddr).Port
	l.logger.Info("discovery listening", "addr", listener.Addr().String())

	server := &http.Server{
		Handler:           l.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer utils.LogPanic()
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("discovery http server failed", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer utils.LogPanic()
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if !l.config.DisableMDNS {
		g.Go(func() error {
			defer utils.LogPanic()
			return runResponder(gctx, l.logger, l.config.Identity.Name, port)
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (l *Listener) stop(err error) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.err = err
	close(l.stopping)
	l.mu.Unlock()

	// No handler may still be sending once the channel closes
	l.inflight.Wait()
	close(l.credentials)
	l.logger.Info("discovery stopped", "err", err)
}

// Hand credentials to the consumer. Returns false if the request or the listener
// finished first.
func (l *Listener) emit(ctx context.Context, credentials connect.Credentials) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.inflight.Add(1)
	l.mu.Unlock()
	defer l.inflight.Done()

	select {
	case l.credentials <- credentials:
		return true
	case <-ctx.Done():
	case <-l.stopping:
	}
	return false
}

// --------------------------------------------------------------------------------
// HTTP

func (l *Listener) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(zeroconfPath, l.handleZeroconf)
	mux.Handle(metricsPath, metrics.Handler())
	return mux
}

type statusResponse struct {
	Status       int    `json:"status"`
	StatusString string `json:"statusString"`
	SpotifyError int    `json:"spotifyError"`
}

type infoResponse struct {
	statusResponse
	Version      string `json:"version"`
	DeviceID     string `json:"deviceID"`
	RemoteName   string `json:"remoteName"`
	ActiveUser   string `json:"activeUser"`
	DeviceType   string `json:"deviceType"`
	LinearVolume bool   `json:"linearVolume"`
	Volume       uint16 `json:"volume"`
	AccountReq   string `json:"accountReq"`
}

var okStatus = statusResponse{Status: statusOK, StatusString: "ERROR-OK"}

func (l *Listener) handleZeroconf(w http.ResponseWriter, r *http.Request) {
	logger := l.logger.With(
		"request uuid", uuid.New(),
		"remote", r.RemoteAddr,
	)

	action := r.FormValue("action")
	logger.Debug("zeroconf request", "action", action, "method", r.Method)

	switch action {
	case "getInfo":
		l.handleGetInfo(w, logger)
	case "addUser":
		l.handleAddUser(w, r, logger)
	default:
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: statusBadRequest, StatusString: "ERROR-BAD-REQUEST"}, logger)
	}
}

func (l *Listener) handleGetInfo(w http.ResponseWriter, logger *slog.Logger) {
	l.mu.Lock()
	activeUser := l.activeUser
	l.mu.Unlock()

	identity := l.config.Identity
	writeJSON(w, http.StatusOK, infoResponse{
		statusResponse: okStatus,
		Version:        "2.7.1",
		DeviceID:       l.config.DeviceID,
		RemoteName:     identity.Name,
		ActiveUser:     activeUser,
		DeviceType:     strings.ToUpper(string(identity.DeviceType)),
		LinearVolume:   identity.LinearVolume,
		Volume:         identity.Volume,
		AccountReq:     "PREMIUM",
	}, logger)
}

func (l *Listener) handleAddUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	username := r.FormValue("userName")
	blob := r.FormValue("blob")
	if username == "" || blob == "" {
		logger.Warn("addUser without userName or blob")
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: statusBadRequest, StatusString: "ERROR-MISSING-ACTION"}, logger)
		return
	}
	logger.Info("remote controller selected this device", "username", username, "hasClientKey", r.FormValue("clientKey") != "")

	credentials := connect.Credentials{
		Username: username,
		AuthType: connect.AuthTypeDiscoveryBlob,
		AuthData: []byte(blob),
	}
	if !l.emit(r.Context(), credentials) {
		logger.Warn("discovery stopped before credentials were taken")
		http.Error(w, "discovery stopped", http.StatusServiceUnavailable)
		return
	}

	l.mu.Lock()
	l.activeUser = username
	l.mu.Unlock()
	writeJSON(w, http.StatusOK, okStatus, logger)
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("could not write zeroconf response", "err", err)
	}
}
