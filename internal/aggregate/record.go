package aggregate

import (
	"maps"
	"strconv"
	"strings"

	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

// Reserved entries in the persisted record map. Field names never start
// with an underscore.
const (
	reservedKinds    = "_kinds"
	reservedExported = "_exported"
)

// Record is the union of every field set contributed for one person.
type Record struct {
	Key      correlate.PersonKey    `json:"person_key"`
	Fields   map[string]string      `json:"fields"`
	Kinds    map[document.Kind]bool `json:"kinds"`
	Exported bool                   `json:"exported"`
}

func newRecord(key correlate.PersonKey) *Record {
	return &Record{
		Key:    key,
		Fields: make(map[string]string),
		Kinds:  make(map[document.Kind]bool),
	}
}

// Complete reports whether every document kind has been contributed.
func (r Record) Complete() bool {
	return r.State() == document.StateComplete
}

// PendingExport reports whether the record is complete but not yet exported.
func (r Record) PendingExport() bool {
	return r.Complete() && !r.Exported
}

// State derives the upload state from the contributed kinds.
func (r Record) State() document.State {
	return document.StateFor(r.Kinds)
}

// Get returns a merged field value.
func (r Record) Get(field string) (string, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// ContributedKinds lists contributed kinds in upload order.
func (r Record) ContributedKinds() []document.Kind {
	out := make([]document.Kind, 0, len(r.Kinds))
	for _, k := range document.Kinds {
		if r.Kinds[k] {
			out = append(out, k)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Fields = maps.Clone(r.Fields)
	r.Kinds = maps.Clone(r.Kinds)
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	if r.Kinds == nil {
		r.Kinds = map[document.Kind]bool{}
	}
	return r
}

// merge applies fields last-write-wins.
func (r *Record) merge(fields map[string]string) {
	for k, v := range fields {
		r.Fields[k] = v
	}
}

// encode flattens the record for the gateway.
func (r Record) encode() map[string]string {
	out := maps.Clone(r.Fields)
	if out == nil {
		out = make(map[string]string, 2)
	}
	kinds := r.ContributedKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	out[reservedKinds] = strings.Join(names, ",")
	out[reservedExported] = strconv.FormatBool(r.Exported)
	return out
}

// decodeRecord rebuilds a record read from the gateway.
func decodeRecord(key correlate.PersonKey, stored map[string]string) *Record {
	rec := newRecord(key)
	for k, v := range stored {
		switch k {
		case reservedKinds:
			for _, name := range strings.Split(v, ",") {
				if kind := document.Kind(name); kind.Valid() {
					rec.Kinds[kind] = true
				}
			}
		case reservedExported:
			rec.Exported, _ = strconv.ParseBool(v)
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}
