// Package auth implements the authentication mechanisms spec.md §4.3
// enumerates: MongoCR (the default), Plain, X509, and a GSSAPI plugin
// seam. SCRAM-SHA-1/256 (a later teacher generation, core/auth/scramsha1.go)
// is intentionally not implemented — see DESIGN.md.
//
// Grounded on core/auth/default.go's mechanism-dispatch shape and
// core/auth/sasl.go's SaslClient/conductSaslConversation pattern,
// ported from the teacher's conn.Connection dependency to a narrow
// CommandRunner interface so this package never imports connection
// and no import cycle forms between dial-time auth and the
// connection package that invokes it.
package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/merr"
)

// CommandRunner is the capability an Authenticator needs from a
// connection: run one command against a database and get the raw
// server reply back. connection.Connection satisfies this.
type CommandRunner interface {
	RunCommand(ctx context.Context, db string, cmd interface{}) (map[string]interface{}, error)
}

// Authenticator authenticates a connection against one credential.
type Authenticator interface {
	Auth(ctx context.Context, rw CommandRunner) error
}

// CreateAuthenticator returns the Authenticator for cred.Mechanism,
// defaulting to MongoCR, per spec.md §4.3.
func CreateAuthenticator(cred *connstring.Credential) (Authenticator, error) {
	switch cred.Mechanism {
	case connstring.MongoCR, connstring.Default:
		return &MongoCRAuthenticator{Cred: cred}, nil
	case connstring.Plain:
		return &PlainAuthenticator{Cred: cred}, nil
	case connstring.X509:
		return &X509Authenticator{Cred: cred}, nil
	case connstring.GSSAPI:
		return newGSSAPIAuthenticator(cred)
	default:
		return nil, fmt.Errorf("auth: unknown mechanism %q", cred.Mechanism)
	}
}

func newError(err error, mech string) error {
	logrus.WithField("mechanism", mech).WithError(err).Warn("auth: handshake failed")
	return merr.NewAuthenticationError(mech, fmt.Sprintf("unable to authenticate using mechanism %q", mech), err)
}

func authSource(cred *connstring.Credential) string {
	if cred.Source != "" {
		return cred.Source
	}
	return "admin"
}

func commandOK(resp map[string]interface{}) bool {
	switch v := resp["ok"].(type) {
	case int:
		return v == 1
	case int32:
		return v == 1
	case float64:
		return v == 1
	case bool:
		return v
	default:
		return false
	}
}
