package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/mongodb/mongo-go-driver-core/auth"
	"github.com/mongodb/mongo-go-driver-core/connstring"
)

// mockRunner is a CommandRunner that replays a fixed queue of
// responses and records every command it was asked to run, the same
// shape as the teacher's internal/conntest.MockConnection but scoped
// to the narrower CommandRunner interface auth depends on.
type mockRunner struct {
	responses []map[string]interface{}
	sent      []map[string]interface{}
}

func (m *mockRunner) RunCommand(ctx context.Context, db string, cmd interface{}) (map[string]interface{}, error) {
	m.sent = append(m.sent, cmd.(map[string]interface{}))
	if len(m.responses) == 0 {
		return nil, &commandFailed{}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if ok, _ := resp["ok"].(int); ok != 1 {
		return resp, &commandFailed{resp}
	}
	return resp, nil
}

type commandFailed struct {
	resp map[string]interface{}
}

func (e *commandFailed) Error() string { return "command failed" }

func TestCreateAuthenticator(t *testing.T) {
	tests := []struct {
		name string
		mech connstring.AuthMechanism
		want Authenticator
	}{
		{name: "default", mech: connstring.Default, want: &MongoCRAuthenticator{}},
		{name: "MONGODB-CR", mech: connstring.MongoCR, want: &MongoCRAuthenticator{}},
		{name: "PLAIN", mech: connstring.Plain, want: &PlainAuthenticator{}},
		{name: "MONGODB-X509", mech: connstring.X509, want: &X509Authenticator{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, err := CreateAuthenticator(&connstring.Credential{Mechanism: test.mech, Username: "user"})
			require.NoError(t, err)
			require.IsType(t, test.want, a)
		})
	}
}

func TestCreateAuthenticator_GSSAPINotEnabled(t *testing.T) {
	_, err := CreateAuthenticator(&connstring.Credential{Mechanism: connstring.GSSAPI, Username: "user"})
	require.Error(t, err)
}

func TestCreateAuthenticator_UnknownMechanism(t *testing.T) {
	_, err := CreateAuthenticator(&connstring.Credential{Mechanism: "BOGUS"})
	require.Error(t, err)
}
