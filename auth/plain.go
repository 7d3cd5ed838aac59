package auth

import (
	"context"
	"fmt"

	"github.com/mongodb/mongo-go-driver-core/connstring"
)

// Plain is the mechanism name for PLAIN.
const Plain = "PLAIN"

// PlainAuthenticator uses the PLAIN mechanism over SASL to
// authenticate a connection, per spec.md §4.3.
type PlainAuthenticator struct {
	Cred *connstring.Credential
}

// Name returns PLAIN.
func (a *PlainAuthenticator) Name() string { return Plain }

// Auth authenticates the connection.
func (a *PlainAuthenticator) Auth(ctx context.Context, rw CommandRunner) error {
	return conductSaslConversation(ctx, rw, authSource(a.Cred), &plainSaslClient{
		Username: a.Cred.Username,
		Password: string(a.Cred.Password),
	})
}

type plainSaslClient struct {
	Username string
	Password string
}

func (c *plainSaslClient) Start() (string, []byte, error) {
	b := []byte("\x00" + c.Username + "\x00" + c.Password)
	return Plain, b, nil
}

func (c *plainSaslClient) Next(challenge []byte) ([]byte, error) {
	return nil, fmt.Errorf("unexpected server challenge")
}

func (c *plainSaslClient) Completed() bool { return true }
