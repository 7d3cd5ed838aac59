package auth_test

import (
	"context"
	"encoding/base64"
	"reflect"
	"strings"
	"testing"

	. "github.com/mongodb/mongo-go-driver-core/auth"
	"github.com/mongodb/mongo-go-driver-core/connstring"
)

func TestPlainAuthenticator_Fails(t *testing.T) {
	t.Parallel()

	authenticator := PlainAuthenticator{
		Cred: &connstring.Credential{Source: "source", Username: "user", Password: []byte("pencil")},
	}

	runner := &mockRunner{responses: []map[string]interface{}{
		{"ok": 1, "conversationId": 1, "payload": []byte{}, "code": 143, "done": true},
	}}

	err := authenticator.Auth(context.Background(), runner)
	if err == nil {
		t.Fatalf("expected an error but got none")
	}

	errPrefix := `unable to authenticate using mechanism "PLAIN"`
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with %q but got %q", errPrefix, err)
	}
}

func TestPlainAuthenticator_Succeeds(t *testing.T) {
	t.Parallel()

	authenticator := PlainAuthenticator{
		Cred: &connstring.Credential{Source: "source", Username: "user", Password: []byte("pencil")},
	}

	runner := &mockRunner{responses: []map[string]interface{}{
		{"ok": 1, "conversationId": 1, "payload": []byte{}, "done": true},
	}}

	err := authenticator.Auth(context.Background(), runner)
	if err != nil {
		t.Fatalf("expected no error but got %q", err)
	}

	if len(runner.sent) != 1 {
		t.Fatalf("expected 1 message to be sent but had %d", len(runner.sent))
	}

	saslStartRequest := runner.sent[0]
	payload, _ := base64.StdEncoding.DecodeString("AHVzZXIAcGVuY2ls")
	expected := map[string]interface{}{
		"saslStart": 1,
		"mechanism": "PLAIN",
		"payload":   payload,
	}
	if !reflect.DeepEqual(saslStartRequest, expected) {
		t.Fatalf("saslStart command was incorrect: %v", saslStartRequest)
	}
}
