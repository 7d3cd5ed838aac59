package operation

import (
	"fmt"
	"strings"
)

// Namespace is a database name plus a collection name, together
// identifying one collection within a cluster, per spec.md §3.
//
// Grounded on mongo/private/ops/namespace.go's Namespace/NewNamespace/
// ParseNamespace/FullName/validate shape (kept over core/namespace.go's
// constructor-returns-error variant since operations build a Namespace
// from already-validated caller input far more often than they parse
// one from an untrusted string).
type Namespace struct {
	DB         string
	Collection string
}

// NewNamespace builds a Namespace from a database and collection name.
func NewNamespace(db, collection string) Namespace {
	return Namespace{DB: db, Collection: collection}
}

// ParseNamespace splits "db.collection[.sub]" on its first dot. A
// string with no dot yields the zero Namespace.
func ParseNamespace(fullName string) Namespace {
	i := strings.Index(fullName, ".")
	if i == -1 {
		return Namespace{}
	}
	return Namespace{DB: fullName[:i], Collection: fullName[i+1:]}
}

// FullName joins DB and Collection with a ".".
func (ns Namespace) FullName() string {
	return ns.DB + "." + ns.Collection
}

// validate reports whether ns is usable: DB must be non-empty and
// contain neither " " nor ".", Collection must be non-empty.
func (ns Namespace) validate() error {
	if ns.DB == "" {
		return fmt.Errorf("operation: database name cannot be empty")
	}
	if strings.ContainsAny(ns.DB, " .") {
		return fmt.Errorf("operation: database name cannot contain ' ' or '.'")
	}
	if ns.Collection == "" {
		return fmt.Errorf("operation: collection name cannot be empty")
	}
	return nil
}
