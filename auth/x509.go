package auth

import (
	"context"
	"fmt"

	"github.com/mongodb/mongo-go-driver-core/connstring"
)

// MongoDBX509 is the mechanism name for X509.
const MongoDBX509 = "MONGODB-X509"

// X509Authenticator authenticates using a client certificate supplied
// during the TLS handshake; the authenticate command only carries the
// username the certificate was issued to, per spec.md §4.3.
type X509Authenticator struct {
	Cred *connstring.Credential
}

// Name returns MONGODB-X509.
func (a *X509Authenticator) Name() string { return MongoDBX509 }

// Auth authenticates the connection.
func (a *X509Authenticator) Auth(ctx context.Context, rw CommandRunner) error {
	cmd := map[string]interface{}{
		"authenticate": 1,
		"mechanism":    MongoDBX509,
	}
	if a.Cred.Username != "" {
		cmd["user"] = a.Cred.Username
	}

	resp, err := rw.RunCommand(ctx, "$external", cmd)
	if err != nil {
		return newError(err, a.Name())
	}
	if !commandOK(resp) {
		return newError(fmt.Errorf("authenticate command did not return ok"), a.Name())
	}
	return nil
}
