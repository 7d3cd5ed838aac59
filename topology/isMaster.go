package topology

import (
	"time"

	"github.com/mongodb/mongo-go-driver-core/address"
	"github.com/mongodb/mongo-go-driver-core/description"
	"gopkg.in/mgo.v2/bson"
)

// parseIsMaster turns an isMaster response into a description.Server,
// following spec.md §4.6's field-by-field rules. "ok" is accepted as
// either a boolean or a number. Version is read from the reply's own
// "version" field; no buildInfo reply is merged in.
// singleSeed reports whether the cluster was configured with exactly
// one seed host, which decides the Standalone/RSOther fallback.
func parseIsMaster(addr address.Address, resp map[string]interface{}, rtt time.Duration, singleSeed bool) description.Server {
	if !boolField(resp, "ok") && int32Field(resp, "ok") != 1 {
		return description.Unknown(addr, nil)
	}

	s := description.Server{
		Addr:            addr,
		Kind:            classifyKind(resp, singleSeed),
		CanonicalAddr:   addressField(resp, "me"),
		Hosts:           addressSliceField(resp, "hosts"),
		Passives:        addressSliceField(resp, "passives"),
		Arbiters:        addressSliceField(resp, "arbiters"),
		Tags:            tagSetField(resp, "tags"),
		SetName:         stringField(resp, "setName"),
		SetVersion:      uint32Field(resp, "setVersion"),
		ElectionID:      objectIDHexField(resp, "electionId"),
		Primary:         addressField(resp, "primary"),
		MinWireVersion:  int32Field(resp, "minWireVersion"),
		MaxWireVersion:  int32Field(resp, "maxWireVersion"),
		MaxDocumentSize: uint32FieldOr(resp, "maxBsonObjectSize", 16*1024*1024),
		MaxMessageSize:  uint32FieldOr(resp, "maxMessageSizeBytes", 48*1024*1024),
		MaxBatchCount:   uint16FieldOr(resp, "maxWriteBatchSize", 1000),
		AverageRTT:      rtt,
		AverageRTTSet:   true,
		Version:         stringField(resp, "version"),
		LastUpdateTime:  time.Now(),
	}
	return s
}

// classifyKind implements spec.md §4.6's isMaster classification rules
// in the order given there.
func classifyKind(resp map[string]interface{}, singleSeed bool) description.ServerKind {
	setName := stringField(resp, "setName")

	if boolField(resp, "isreplicaset") && setName == "" {
		return description.RSGhost
	}
	if setName != "" {
		if boolField(resp, "ismaster") {
			return description.RSPrimary
		}
		if boolField(resp, "secondary") {
			return description.RSSecondary
		}
		if boolField(resp, "arbiterOnly") {
			return description.RSArbiter
		}
		return description.RSOther
	}
	if stringField(resp, "msg") == "isdbgrid" {
		return description.Mongos
	}
	if singleSeed {
		return description.Standalone
	}
	return description.RSOther
}

func boolField(resp map[string]interface{}, key string) bool {
	v, _ := resp[key].(bool)
	return v
}

func stringField(resp map[string]interface{}, key string) string {
	v, _ := resp[key].(string)
	return v
}

func addressField(resp map[string]interface{}, key string) address.Address {
	s := stringField(resp, key)
	if s == "" {
		return ""
	}
	return address.Address(s).Canonicalize()
}

func addressSliceField(resp map[string]interface{}, key string) []address.Address {
	raw, ok := resp[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]address.Address, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, address.Address(s).Canonicalize())
		}
	}
	return out
}

func tagSetField(resp map[string]interface{}, key string) description.TagSet {
	raw, ok := resp[key].(bson.M)
	if !ok {
		return nil
	}
	tags := make(description.TagSet, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	return tags
}

func objectIDHexField(resp map[string]interface{}, key string) string {
	switch v := resp[key].(type) {
	case bson.ObjectId:
		if !v.Valid() {
			return ""
		}
		return v.Hex()
	case string:
		return v
	default:
		return ""
	}
}

func int32Field(resp map[string]interface{}, key string) int32 {
	switch v := resp[key].(type) {
	case int32:
		return v
	case int:
		return int32(v)
	case int64:
		return int32(v)
	case float64:
		return int32(v)
	default:
		return 0
	}
}

func uint32Field(resp map[string]interface{}, key string) uint32 {
	return uint32(int32Field(resp, key))
}

func uint32FieldOr(resp map[string]interface{}, key string, def uint32) uint32 {
	if _, ok := resp[key]; !ok {
		return def
	}
	return uint32Field(resp, key)
}

func uint16FieldOr(resp map[string]interface{}, key string, def uint16) uint16 {
	if _, ok := resp[key]; !ok {
		return def
	}
	return uint16(int32Field(resp, key))
}
