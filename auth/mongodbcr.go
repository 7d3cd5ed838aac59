package auth

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/mongodb/mongo-go-driver-core/connstring"
)

// MongoDBCR is the mechanism name for MongoCR.
const MongoDBCR = "MONGODB-CR"

// MongoCRAuthenticator uses the getnonce/authenticate challenge-response
// algorithm spec.md §4.3 describes to authenticate a connection.
type MongoCRAuthenticator struct {
	Cred *connstring.Credential
}

// Name returns MONGODB-CR.
func (a *MongoCRAuthenticator) Name() string { return MongoDBCR }

// Auth authenticates the connection.
func (a *MongoCRAuthenticator) Auth(ctx context.Context, rw CommandRunner) error {
	db := authSource(a.Cred)

	nonceResp, err := rw.RunCommand(ctx, db, map[string]interface{}{"getnonce": 1})
	if err != nil {
		return newError(err, a.Name())
	}
	nonce, _ := nonceResp["nonce"].(string)
	if nonce == "" {
		return newError(fmt.Errorf("getnonce returned no nonce"), a.Name())
	}

	password := string(a.Cred.Password)
	authResp, err := rw.RunCommand(ctx, db, map[string]interface{}{
		"authenticate": 1,
		"user":         a.Cred.Username,
		"nonce":        nonce,
		"key":          a.createKey(nonce, a.Cred.Username, password),
	})
	if err != nil {
		return newError(err, a.Name())
	}
	if !commandOK(authResp) {
		return newError(fmt.Errorf("authenticate command did not return ok"), a.Name())
	}

	return nil
}

func (a *MongoCRAuthenticator) createKey(nonce, username, password string) string {
	h := md5.New()
	io.WriteString(h, nonce)
	io.WriteString(h, username)
	io.WriteString(h, mongoPasswordDigest(username, password))
	return fmt.Sprintf("%x", h.Sum(nil))
}
