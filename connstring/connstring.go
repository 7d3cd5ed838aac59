// Package connstring parses a mongodb:// connection string into a
// ClientSettings and a CredentialList, following spec.md §4.1 and
// original_source's MongoClientURI (last-"/" split, percent-decoded
// credentials, lower-cased option keys, "safe"/"w"/"wtimeout" precedence).
package connstring

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/description"
	"github.com/mongodb/mongo-go-driver-core/merr"
	"github.com/mongodb/mongo-go-driver-core/readpref"
	"github.com/mongodb/mongo-go-driver-core/writeconcern"

	"github.com/sirupsen/logrus"
)

const scheme = "mongodb://"

// AuthMechanism identifies the credential handshake a Credential uses.
type AuthMechanism string

// Recognized mechanisms, per spec.md §3/§4.1.
const (
	MongoCR AuthMechanism = "MONGODB-CR"
	Plain   AuthMechanism = "PLAIN"
	GSSAPI  AuthMechanism = "GSSAPI"
	X509    AuthMechanism = "MONGODB-X509"
	Default AuthMechanism = ""
)

// Credential is one set of authentication material for one authSource.
// Password is a mutable byte slice so a caller can zero it after use.
type Credential struct {
	Mechanism  AuthMechanism
	Username   string
	Source     string
	Password   []byte
	PasswordSet bool
	Props      map[string]string
}

// CredentialList is the (at most one, per spec.md §4.1) credential
// parsed from a URI, kept as a list for symmetry with the original
// driver's getCredentialList().
type CredentialList []Credential

// ClientSettings is the typed configuration parsed from a connection
// string, with defaults per spec.md §3.
type ClientSettings struct {
	Hosts   []address.Address
	Database string
	AppName  string

	ReplicaSet string
	SSLEnabled bool

	MaxPoolSize      uint64
	MinPoolSize      uint64
	MaxWaitQueueSize uint64

	MaxWaitTime               time.Duration
	MaxConnectionIdleTime     time.Duration
	MaxConnectionLifeTime     time.Duration
	ConnectTimeout            time.Duration
	SocketTimeout             time.Duration
	SocketKeepAlive           bool

	HeartbeatFrequency               time.Duration
	HeartbeatConnectRetryFrequency   time.Duration
	HeartbeatConnectTimeout          time.Duration
	HeartbeatSocketTimeout           time.Duration

	WriteConcern   *writeconcern.WriteConcern
	ReadPreference *readpref.ReadPref

	Credentials CredentialList

	// UnknownOptions is populated with every option key this parser did
	// not recognize; Parse logs a warning for each, per spec.md §4.1
	// ("unknown keys produce a log warning, not a failure").
	UnknownOptions []string
}

func defaultSettings() *ClientSettings {
	return &ClientSettings{
		MaxPoolSize:                    100,
		MinPoolSize:                    0,
		MaxWaitQueueSize:               500,
		MaxWaitTime:                    120000 * time.Millisecond,
		ConnectTimeout:                 10000 * time.Millisecond,
		HeartbeatFrequency:             5000 * time.Millisecond,
		HeartbeatConnectRetryFrequency: 10 * time.Millisecond,
		HeartbeatConnectTimeout:        20000 * time.Millisecond,
		HeartbeatSocketTimeout:         20000 * time.Millisecond,
		WriteConcern:                   writeconcern.New(),
		ReadPreference:                 readpref.Primary(),
	}
}

// Parse parses a mongodb:// connection string into a ClientSettings.
// Unrecognized option keys are recorded on UnknownOptions rather than
// failing parsing.
func Parse(uri string) (*ClientSettings, error) {
	if !strings.HasPrefix(uri, scheme) {
		return nil, merr.NewConfigError("uri needs to start with " + scheme)
	}
	rest := uri[len(scheme):]

	idx := strings.LastIndex(rest, "/")
	var serverPart, nsPart, optionsPart string
	if idx < 0 {
		if strings.Contains(rest, "?") {
			return nil, merr.NewConfigError("URI contains options without trailing slash")
		}
		serverPart = rest
	} else {
		serverPart = rest[:idx]
		nsPart = rest[idx+1:]
		if q := strings.Index(nsPart, "?"); q >= 0 {
			optionsPart = nsPart[q+1:]
			nsPart = nsPart[:q]
		}
	}

	var username, password string
	var hasPassword bool
	if at := strings.LastIndex(serverPart, "@"); at > 0 {
		authPart := serverPart[:at]
		serverPart = serverPart[at+1:]

		if c := strings.Index(authPart, ":"); c == -1 {
			u, err := url.QueryUnescape(authPart)
			if err != nil {
				return nil, merr.WrapConfigError(err, "invalid percent-encoding in username")
			}
			username = u
		} else {
			u, err := url.QueryUnescape(authPart[:c])
			if err != nil {
				return nil, merr.WrapConfigError(err, "invalid percent-encoding in username")
			}
			p, err := url.QueryUnescape(authPart[c+1:])
			if err != nil {
				return nil, merr.WrapConfigError(err, "invalid percent-encoding in password")
			}
			username, password, hasPassword = u, p, true
		}
	}

	if serverPart == "" {
		return nil, merr.NewConfigError("uri must contain at least one host")
	}
	hostStrs := strings.Split(serverPart, ",")
	hosts := make([]address.Address, 0, len(hostStrs))
	for _, h := range hostStrs {
		hosts = append(hosts, address.Address(h).Canonicalize())
	}

	database := ""
	if nsPart != "" {
		if dot := strings.Index(nsPart, "."); dot >= 0 {
			database = nsPart[:dot]
		} else {
			database = nsPart
		}
	}

	settings := defaultSettings()
	settings.Hosts = hosts
	settings.Database = database

	optMap := parseOptions(optionsPart)
	if err := settings.applyOptions(optMap); err != nil {
		return nil, err
	}

	if username != "" {
		cred, err := createCredential(optMap, username, password, hasPassword, database)
		if err != nil {
			return nil, err
		}
		settings.Credentials = CredentialList{cred}
	}

	for k := range optMap {
		if !knownKeys[k] {
			settings.UnknownOptions = append(settings.UnknownOptions, k)
		}
	}
	for _, k := range settings.UnknownOptions {
		logrus.WithField("option", k).Warn("connstring: unknown or unsupported option")
	}

	return settings, nil
}

// String reserializes s back into a mongodb:// URI that Parse parses
// into an equal ClientSettings and CredentialList, per spec.md §8
// Property 1. Only the options applyOptions/createCredential actually
// read from a URI are emitted; fields Parse never takes from the URI
// itself (the Heartbeat* fields, SocketKeepAlive) are always whatever
// defaultSettings sets regardless of input, so they need no round
// trip through the string form.
func (s *ClientSettings) String() string {
	var b strings.Builder
	b.WriteString(scheme)

	if len(s.Credentials) > 0 {
		cred := s.Credentials[0]
		b.WriteString(url.QueryEscape(cred.Username))
		if cred.PasswordSet {
			b.WriteByte(':')
			b.WriteString(url.QueryEscape(string(cred.Password)))
		}
		b.WriteByte('@')
	}

	hosts := make([]string, len(s.Hosts))
	for i, h := range s.Hosts {
		hosts[i] = string(h)
	}
	b.WriteString(strings.Join(hosts, ","))

	b.WriteByte('/')
	b.WriteString(s.Database)

	if opts := s.reserializeOptions(); len(opts) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(opts, "&"))
	}

	return b.String()
}

func (s *ClientSettings) reserializeOptions() []string {
	var opts []string
	add := func(k, v string) { opts = append(opts, k+"="+v) }
	addMS := func(k string, d time.Duration) { add(k, strconv.FormatInt(int64(d/time.Millisecond), 10)) }

	add("maxPoolSize", strconv.FormatUint(s.MaxPoolSize, 10))
	add("minPoolSize", strconv.FormatUint(s.MinPoolSize, 10))
	if s.MaxPoolSize > 0 && s.MaxWaitQueueSize%s.MaxPoolSize == 0 {
		if multiple := s.MaxWaitQueueSize / s.MaxPoolSize; multiple != 5 {
			add("waitQueueMultiple", strconv.FormatUint(multiple, 10))
		}
	}
	addMS("waitQueueTimeoutMS", s.MaxWaitTime)
	addMS("connectTimeoutMS", s.ConnectTimeout)
	addMS("socketTimeoutMS", s.SocketTimeout)
	addMS("maxIdleTimeMS", s.MaxConnectionIdleTime)
	addMS("maxLifeTimeMS", s.MaxConnectionLifeTime)
	if s.SSLEnabled {
		add("ssl", "true")
	}
	if s.ReplicaSet != "" {
		add("replicaSet", s.ReplicaSet)
	}
	if s.AppName != "" {
		add("appName", s.AppName)
	}

	if w, ok := s.WriteConcern.W(); ok {
		switch v := w.(type) {
		case int:
			add("w", strconv.Itoa(v))
		case string:
			add("w", v)
		}
	}
	if s.WriteConcern.J() {
		add("j", "true")
	}
	if wt := s.WriteConcern.WTimeout(); wt > 0 {
		addMS("wtimeoutMS", wt)
	}

	if mode := s.ReadPreference.Mode(); mode != readpref.PrimaryMode {
		add("readPreference", mode.String())
	}
	for _, ts := range s.ReadPreference.TagSets() {
		add("readPreferenceTags", tagSetString(ts))
	}

	if len(s.Credentials) > 0 {
		cred := s.Credentials[0]
		add("authMechanism", string(cred.Mechanism))
		add("authSource", cred.Source)
	}

	return opts
}

// tagSetString reserializes a TagSet into parseTagSet's "k:v,k2:v2"
// form. Key order within one tag set doesn't affect the map parseTagSet
// rebuilds, so pairs are sorted only for deterministic output.
func tagSetString(ts description.TagSet) string {
	pairs := make([]string, 0, len(ts))
	for k, v := range ts {
		pairs = append(pairs, k+":"+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// parseOptions splits "k1=v1&k2=v2" (";" also accepted as a deprecated
// separator) into a map of lower-cased keys to repeated values, in
// URI order, mirroring MongoClientURI.parseOptions.
func parseOptions(optionsPart string) map[string][]string {
	out := map[string][]string{}
	if optionsPart == "" {
		return out
	}
	for _, part := range strings.FieldsFunc(optionsPart, func(r rune) bool { return r == '&' || r == ';' }) {
		eq := strings.Index(part, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(part[:eq])
		val := part[eq+1:]
		out[key] = append(out[key], val)
	}
	return out
}

func lastValue(m map[string][]string, key string) (string, bool) {
	vs, ok := m[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

// parseBool implements spec.md §4.1's boolean parsing: "1", "true",
// "yes" (case-insensitive, trimmed) are true, everything else false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

var knownKeys = map[string]bool{
	"maxpoolsize": true, "minpoolsize": true, "waitqueuemultiple": true,
	"waitqueuetimeoutms": true, "connecttimeoutms": true, "sockettimeoutms": true,
	"maxidletimems": true, "maxlifetimems": true, "ssl": true, "replicaset": true,
	"slaveok": true, "readpreference": true, "readpreferencetags": true,
	"safe": true, "w": true, "wtimeout": true, "wtimeoutms": true, "fsync": true, "j": true,
	"authmechanism": true, "authsource": true, "appname": true,
}

func (s *ClientSettings) applyOptions(m map[string][]string) error {
	if v, ok := lastValue(m, "maxpoolsize"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid maxPoolSize")
		}
		s.MaxPoolSize = n
	}
	if v, ok := lastValue(m, "minpoolsize"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid minPoolSize")
		}
		s.MinPoolSize = n
	}
	waitQueueMultiple := uint64(5)
	if v, ok := lastValue(m, "waitqueuemultiple"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid waitQueueMultiple")
		}
		waitQueueMultiple = n
	}
	s.MaxWaitQueueSize = s.MaxPoolSize * waitQueueMultiple
	if v, ok := lastValue(m, "waitqueuetimeoutms"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid waitQueueTimeoutMS")
		}
		s.MaxWaitTime = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "connecttimeoutms"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid connectTimeoutMS")
		}
		s.ConnectTimeout = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "sockettimeoutms"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid socketTimeoutMS")
		}
		s.SocketTimeout = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "maxidletimems"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid maxIdleTimeMS")
		}
		s.MaxConnectionIdleTime = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "maxlifetimems"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return merr.WrapConfigError(err, "invalid maxLifeTimeMS")
		}
		s.MaxConnectionLifeTime = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "ssl"); ok {
		s.SSLEnabled = parseBool(v)
	}
	if v, ok := lastValue(m, "replicaset"); ok {
		s.ReplicaSet = v
	}
	if v, ok := lastValue(m, "appname"); ok {
		s.AppName = v
	}

	wc, err := createWriteConcern(m)
	if err != nil {
		return err
	}
	if wc != nil {
		s.WriteConcern = wc
	}

	rp, err := createReadPreference(m)
	if err != nil {
		return err
	}
	if rp != nil {
		s.ReadPreference = rp
	}

	return nil
}

// createWriteConcern implements MongoClientURI.buildWriteConcern: an
// explicit w/wtimeout/fsync/j wins over "safe", per spec.md §4.1 and
// the Open Question in spec.md §9.
func createWriteConcern(m map[string][]string) (*writeconcern.WriteConcern, error) {
	wStr, hasW := lastValue(m, "w")
	var wTimeout time.Duration
	hasWTimeout := false
	if v, ok := lastValue(m, "wtimeout"); ok {
		hasWTimeout = true
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, merr.WrapConfigError(err, "invalid wtimeout")
		}
		wTimeout = time.Duration(n) * time.Millisecond
	}
	if v, ok := lastValue(m, "wtimeoutms"); ok {
		hasWTimeout = true
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, merr.WrapConfigError(err, "invalid wtimeoutMS")
		}
		wTimeout = time.Duration(n) * time.Millisecond
	}
	fsyncStr, hasFsync := lastValue(m, "fsync")
	jStr, hasJ := lastValue(m, "j")
	fsync := hasFsync && parseBool(fsyncStr)
	j := hasJ && parseBool(jStr)

	if hasW || hasWTimeout || fsync || j {
		opts := []writeconcern.Option{writeconcern.J(j), writeconcern.WTimeout(wTimeout)}
		if hasW {
			if n, err := strconv.Atoi(wStr); err == nil {
				opts = append(opts, writeconcern.W(n))
			} else {
				opts = append(opts, writeconcern.WTag(wStr))
			}
		}
		return writeconcern.New(opts...), nil
	}

	if safeStr, ok := lastValue(m, "safe"); ok {
		if parseBool(safeStr) {
			return writeconcern.New(writeconcern.W(1)), nil
		}
		return writeconcern.New(writeconcern.W(0)), nil
	}

	return nil, nil
}

// createReadPreference implements MongoClientURI.buildReadPreference:
// an explicit readPreference wins; else slaveOk=true means
// secondaryPreferred, per spec.md §4.1.
func createReadPreference(m map[string][]string) (*readpref.ReadPref, error) {
	var tagSets description.TagSetList
	for _, raw := range m["readpreferencetags"] {
		ts, err := parseTagSet(raw)
		if err != nil {
			return nil, err
		}
		tagSets = append(tagSets, ts)
	}

	if v, ok := lastValue(m, "readpreference"); ok {
		mode, err := readpref.ModeFromString(v)
		if err != nil {
			return nil, merr.WrapConfigError(err, "invalid readPreference")
		}
		return readpref.New(mode, tagSets), nil
	}

	if v, ok := lastValue(m, "slaveok"); ok && parseBool(v) {
		return readpref.SecondaryPreferred(), nil
	}

	return nil, nil
}

// parseTagSet parses "k:v,k2:v2" into a TagSet; an empty string
// produces an empty TagSet, meaning "match any", per spec.md §4.1.
func parseTagSet(raw string) (description.TagSet, error) {
	ts := description.TagSet{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ts, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, merr.NewConfigError("bad read preference tags: " + raw)
		}
		ts[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return ts, nil
}

// createCredential implements MongoClientURI.createCredentials: the
// mechanism defaults to MongoCR when a username but no authMechanism
// is supplied; a password is discarded for GSSAPI/X509, per spec.md
// §4.1 and §9's Open Question (unknown mechanisms deferred to
// handshake time, not rejected here).
func createCredential(m map[string][]string, username, password string, hasPassword bool, database string) (Credential, error) {
	mechanism := MongoCR
	source := "admin"
	if database != "" {
		source = database
	}

	if v, ok := lastValue(m, "authmechanism"); ok {
		mechanism = AuthMechanism(strings.ToUpper(v))
	}
	if v, ok := lastValue(m, "authsource"); ok {
		source = v
	}

	cred := Credential{Mechanism: mechanism, Username: username, Source: source}
	switch mechanism {
	case GSSAPI, X509:
		// password discarded per spec.md §4.1
	default:
		if hasPassword {
			cred.Password = []byte(password)
			cred.PasswordSet = true
		}
	}
	return cred, nil
}

// Zero overwrites a credential's password bytes with zeroes, per
// spec.md §3's "held as a mutable byte sequence so it may be zeroed
// after use".
func (c *Credential) Zero() {
	for i := range c.Password {
		c.Password[i] = 0
	}
}
