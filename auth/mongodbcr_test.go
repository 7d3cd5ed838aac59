package auth_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	. "github.com/mongodb/mongo-go-driver-core/auth"
	"github.com/mongodb/mongo-go-driver-core/connstring"
)

func TestMongoCRAuthenticator_Fails(t *testing.T) {
	t.Parallel()

	authenticator := MongoCRAuthenticator{
		Cred: &connstring.Credential{Source: "source", Username: "user", Password: []byte("pencil")},
	}

	runner := &mockRunner{responses: []map[string]interface{}{
		{"ok": 1, "nonce": "2375531c32080ae8"},
		{"ok": 0},
	}}

	err := authenticator.Auth(context.Background(), runner)
	if err == nil {
		t.Fatalf("expected an error but got none")
	}

	errPrefix := `unable to authenticate using mechanism "MONGODB-CR"`
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with %q but got %q", errPrefix, err)
	}
}

func TestMongoCRAuthenticator_Succeeds(t *testing.T) {
	t.Parallel()

	authenticator := MongoCRAuthenticator{
		Cred: &connstring.Credential{Source: "source", Username: "user", Password: []byte("pencil")},
	}

	runner := &mockRunner{responses: []map[string]interface{}{
		{"ok": 1, "nonce": "2375531c32080ae8"},
		{"ok": 1},
	}}

	err := authenticator.Auth(context.Background(), runner)
	if err != nil {
		t.Fatalf("expected no error but got %q", err)
	}

	if len(runner.sent) != 2 {
		t.Fatalf("expected 2 messages to be sent but had %d", len(runner.sent))
	}

	getNonceRequest := runner.sent[0]
	if !reflect.DeepEqual(getNonceRequest, map[string]interface{}{"getnonce": 1}) {
		t.Fatalf("getnonce command was incorrect: %v", getNonceRequest)
	}

	authenticateRequest := runner.sent[1]
	expected := map[string]interface{}{
		"authenticate": 1,
		"user":         "user",
		"nonce":        "2375531c32080ae8",
		"key":          "21742f26431831d5cfca035a08c5bdf6",
	}
	if !reflect.DeepEqual(authenticateRequest, expected) {
		t.Fatalf("authenticate command was incorrect: %v", authenticateRequest)
	}
}
