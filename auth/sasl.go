package auth

import (
	"context"
	"fmt"
)

// saslClient is the challenge-response shape Plain and GSSAPI drive
// through conductSaslConversation.
type saslClient interface {
	Start() (string, []byte, error)
	Next(challenge []byte) ([]byte, error)
	Completed() bool
}

type saslClientCloser interface {
	Close()
}

func conductSaslConversation(ctx context.Context, rw CommandRunner, db string, client saslClient) error {
	if db == "" {
		db = "$external"
	}

	if closer, ok := client.(saslClientCloser); ok {
		defer closer.Close()
	}

	mech, payload, err := client.Start()
	if err != nil {
		return newError(err, mech)
	}

	resp, err := rw.RunCommand(ctx, db, map[string]interface{}{
		"saslStart": 1,
		"mechanism": mech,
		"payload":   payload,
	})
	if err != nil {
		return newError(err, mech)
	}

	cid := conversationID(resp)

	for {
		if !commandOK(resp) {
			return newError(fmt.Errorf("sasl conversation failed"), mech)
		}
		if code := saslCode(resp); code != 0 {
			return newError(fmt.Errorf("server returned sasl error code %d", code), mech)
		}

		done := isDone(resp)
		if done && client.Completed() {
			return nil
		}

		payload, err = client.Next(saslPayload(resp))
		if err != nil {
			return newError(err, mech)
		}

		if done && client.Completed() {
			return nil
		}

		resp, err = rw.RunCommand(ctx, db, map[string]interface{}{
			"saslContinue":   1,
			"conversationId": cid,
			"payload":        payload,
		})
		if err != nil {
			return newError(err, mech)
		}
	}
}

func conversationID(resp map[string]interface{}) interface{} {
	return resp["conversationId"]
}

func saslCode(resp map[string]interface{}) int {
	switch c := resp["code"].(type) {
	case int:
		return c
	case int32:
		return int(c)
	case float64:
		return int(c)
	default:
		return 0
	}
}

func isDone(resp map[string]interface{}) bool {
	done, _ := resp["done"].(bool)
	return done
}

func saslPayload(resp map[string]interface{}) []byte {
	switch p := resp["payload"].(type) {
	case []byte:
		return p
	case string:
		return []byte(p)
	default:
		return nil
	}
}
