// Package store is the persistence gateway: a key-value document store of
// flat string maps grouped into collections.
//
// Three collections are used by the intake pipeline:
//
//   - sessions: session id -> {person_key}
//   - documents: "{person_key}:{kind}" -> extracted field set
//   - records: person key -> aggregated record
//
// Backends: Memory (tests and single-process use), Redis and Postgres. All
// backends return ErrNotFound, optionally wrapped, for absent keys.
package store

import (
	"context"
	"errors"
	"maps"
)

// Collection names.
const (
	CollectionSessions  = "sessions"
	CollectionDocuments = "documents"
	CollectionRecords   = "records"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("not found")

// Gateway reads and writes field maps. Put replaces any existing value.
type Gateway interface {
	Put(ctx context.Context, collection, key string, fields map[string]string) error
	Get(ctx context.Context, collection, key string) (map[string]string, error)
}

// DocumentKey builds the documents collection key for one person and kind.
func DocumentKey(personKey, kind string) string {
	return personKey + ":" + kind
}

func clone(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
