package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/auth"
	"github.com/mongodb/mongo-go-driver-core/connstring"
	"github.com/mongodb/mongo-go-driver-core/merr"
)

// driverVersion is reported in the client identification document.
const driverVersion = "0.1.0"

// Dialer opens the raw transport for a connection. The default is
// (&net.Dialer{}).DialContext.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures Dial, per spec.md §4.4 and §4.1's ClientSettings
// fields that bear on the socket (connectTimeout, socketTimeout,
// socketKeepAlive, sslEnabled).
type Options struct {
	Address         address.Address
	AppName         string
	ConnectTimeout  time.Duration
	SocketTimeout   time.Duration
	SocketKeepAlive time.Duration
	TLSConfig       *tls.Config
	Credentials     connstring.CredentialList
	Dialer          Dialer
}

func (o *Options) fillDefaults() {
	if o.Dialer == nil {
		nd := &net.Dialer{Timeout: o.ConnectTimeout, KeepAlive: o.SocketKeepAlive}
		o.Dialer = nd.DialContext
	}
}

// Dial opens a TCP stream with the configured connect timeout,
// applies keep-alive and optional TLS, runs authentication for each
// supplied credential, and returns a ready-to-use Connection. Any
// failure during dial or handshake closes the partially-opened socket
// and returns a typed error; the caller (the pool) never receives an
// unauthenticated connection, per spec.md §4.3/§4.4.
func Dial(ctx context.Context, opts Options) (*Connection, error) {
	if opts.Address == "" {
		return nil, merr.NewConfigError("connection: address cannot be empty")
	}
	opts.fillDefaults()

	dialCtx := ctx
	var cancel context.CancelFunc
	if opts.ConnectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	nc, err := opts.Dialer(dialCtx, "tcp", string(opts.Address))
	if err != nil {
		return nil, merr.NewTransportError(merr.SocketOpenTimeout, string(opts.Address), err)
	}

	if opts.TLSConfig != nil {
		if deadline, ok := dialCtx.Deadline(); ok {
			nc.SetDeadline(deadline)
		}
		tlsConn := tls.Client(nc, opts.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			nc.Close()
			return nil, merr.NewTransportError(merr.SocketOpenTimeout, string(opts.Address), err)
		}
		nc.SetDeadline(time.Time{})
		nc = tlsConn
	}

	now := time.Now()
	c := &Connection{
		id:            fmt.Sprintf("%s[-%d]", opts.Address, nextConnectionID()),
		addr:          opts.Address,
		nc:            nc,
		socketTimeout: opts.SocketTimeout,
		createdAt:     now,
		lastUsedAt:    now,
	}

	if err := c.handshake(ctx, opts.AppName); err != nil {
		c.Close()
		return nil, err
	}

	for i := range opts.Credentials {
		cred := &opts.Credentials[i]
		authenticator, err := auth.CreateAuthenticator(cred)
		if err != nil {
			c.Close()
			return nil, err
		}
		if err := authenticator.Auth(ctx, c); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// handshake runs the initial isMaster (carrying the client
// identification document) and buildInfo commands, per SPEC_FULL.md's
// BuildInfo and client-identification-document expansions, then makes
// a best-effort getLastError round trip to correlate this connection's
// id with the server's own connectionId for logging.
func (c *Connection) handshake(ctx context.Context, appName string) error {
	isMasterCmd := map[string]interface{}{
		"ismaster": 1,
		"client":   clientDoc(appName),
	}
	isMasterResp, err := c.RunCommand(ctx, "admin", isMasterCmd)
	if err != nil {
		return err
	}

	buildInfoResp, err := c.RunCommand(ctx, "admin", map[string]interface{}{"buildInfo": 1})
	if err != nil {
		return err
	}

	c.minWireVersion = int32OrZero(isMasterResp["minWireVersion"])
	c.maxWireVersion = int32OrZero(isMasterResp["maxWireVersion"])
	c.maxDocumentSize = uint32OrDefault(isMasterResp["maxBsonObjectSize"], 16*1024*1024)
	c.maxMessageSize = uint32OrDefault(isMasterResp["maxMessageSizeBytes"], 48*1024*1024)
	c.maxWriteBatchSize = uint16OrDefault(isMasterResp["maxWriteBatchSize"], 1000)
	c.readOnly, _ = isMasterResp["readOnly"].(bool)

	c.version, _ = buildInfoResp["version"].(string)
	c.gitVersion, _ = buildInfoResp["gitVersion"].(string)

	getLastErrorResp, err := c.RunCommand(ctx, "admin", map[string]interface{}{"getLastError": 1})
	if err == nil {
		if cid := int32OrZero(getLastErrorResp["connectionId"]); cid != 0 {
			c.id = fmt.Sprintf("%s[%d]", c.addr, cid)
		}
	}

	return nil
}

func clientDoc(appName string) map[string]interface{} {
	doc := map[string]interface{}{
		"driver": map[string]interface{}{
			"name":    "mongo-go-driver-core",
			"version": driverVersion,
		},
		"os": map[string]interface{}{
			"type":         "unknown",
			"name":         runtime.GOOS,
			"architecture": runtime.GOARCH,
			"version":      "unknown",
		},
	}
	if appName != "" {
		doc["application"] = map[string]interface{}{"name": appName}
	}
	return doc
}

func int32OrZero(v interface{}) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	case int64:
		return int32(n)
	case float64:
		return int32(n)
	default:
		return 0
	}
}

func uint32OrDefault(v interface{}, def uint32) uint32 {
	n := int32OrZero(v)
	if n <= 0 {
		return def
	}
	return uint32(n)
}

func uint16OrDefault(v interface{}, def uint16) uint16 {
	n := int32OrZero(v)
	if n <= 0 {
		return def
	}
	return uint16(n)
}
