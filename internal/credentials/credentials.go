package credentials

import (
	"errors"
	"log/slog"

	"github.com/hmcalister/connectd/internal/connect"
)

var (
	ErrNoPassword = errors.New("username given without a password, and no cached credentials for it")
)

// Choose the credentials to connect with at startup.
//
//   - username and password: password credentials
//   - a username matching the cached credentials, or no username at all: the cached credentials
//   - a username without a password: ErrNoPassword
//   - nothing: no credentials, the daemon waits for discovery
//
// The boolean reports whether credentials were found.
func Resolve(username string, password string, cached *connect.Credentials) (connect.Credentials, bool, error) {
	switch {
	case username != "" && password != "":
		slog.Debug("using configured password credentials", "username", username)
		return connect.PasswordCredentials(username, password), true, nil

	case cached != nil && (username == "" || username == cached.Username):
		slog.Debug("using cached credentials", "username", cached.Username)
		return *cached, true, nil

	case username != "":
		slog.Error("no password found", "username", username)
		return connect.Credentials{}, false, ErrNoPassword
	}

	slog.Info("no credentials configured, waiting for a discovery event")
	return connect.Credentials{}, false, nil
}
