package connect

import (
	"fmt"
	"log/slog"
)

type AuthType string

var (
	// A plain username/password pair, from the config or the command line
	AuthTypePassword AuthType = "password"

	// Reusable credentials handed out by the engine after a successful login,
	// and persisted in the cache
	AuthTypeStored AuthType = "stored"

	// The opaque blob a remote controller hands over during discovery.
	// Only the engine knows how to unpack it.
	AuthTypeDiscoveryBlob AuthType = "discovery_blob"
)

// An immutable bundle of authentication data for one user.
//
// Ownership of a Credentials value passes to whoever it is sent to,
// the sender must not keep using AuthData.
type Credentials struct {
	Username string   `json:"username"`
	AuthType AuthType `json:"auth_type"`
	AuthData []byte   `json:"auth_data"`
}

// Build password credentials.
func PasswordCredentials(username string, password string) Credentials {
	return Credentials{
		Username: username,
		AuthType: AuthTypePassword,
		AuthData: []byte(password),
	}
}

// Credentials intentionally never print their AuthData, so they are safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("%s (%s)", c.Username, c.AuthType)
}

func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Persists reusable credentials, see github.com/hmcalister/connectd/internal/cache.
type CredentialStore interface {
	SaveCredentials(Credentials) error
}
