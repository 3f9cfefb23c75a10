// Package correlate ties uploads from one chat session to a person.
//
// The identity card is the only document that carries a name the whole
// pipeline can key on. When it arrives, its Name is turned into a PersonKey
// with KeyFor. Once the card's fields are stored, AssignOrFetchKey writes the
// session -> key mapping to the persistence gateway. Later
// documents in the same session resolve their key from memory, or from the
// gateway after a restart.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/store"
)

const sessionKeyField = "person_key"

var (
	// ErrMissingIdentity is returned when no PersonKey can be resolved: the
	// session has no identity card yet, or its Name was unreadable.
	ErrMissingIdentity = errors.New("identity card required before other documents")

	// ErrPersistence wraps gateway failures.
	ErrPersistence = errors.New("session persistence failed")
)

// Correlator maps session ids to person keys.
type Correlator struct {
	gateway store.Gateway
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]PersonKey
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// New creates a Correlator backed by gateway.
func New(gateway store.Gateway, opts ...Option) *Correlator {
	c := &Correlator{
		gateway:  gateway,
		logger:   slog.Default(),
		sessions: make(map[string]PersonKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssignOrFetchKey resolves the PersonKey for sessionID.
//
// With an identity field set the key is derived from its Name, persisted and
// cached. A different name than before re-keys the session. Without one the
// cached key is returned, falling back to the gateway.
func (c *Correlator) AssignOrFetchKey(ctx context.Context, sessionID string, identity *document.FieldSet) (PersonKey, error) {
	if identity != nil {
		return c.assign(ctx, sessionID, identity)
	}
	return c.Lookup(ctx, sessionID)
}

// KeyFor derives the PersonKey for an identity field set without touching
// any session state.
func KeyFor(identity *document.FieldSet) (PersonKey, error) {
	name, _ := identity.Get(document.FieldName)
	key := DeriveKey(name)
	if key == "" {
		return "", fmt.Errorf("%w: identity card name unreadable", ErrMissingIdentity)
	}
	return key, nil
}

func (c *Correlator) assign(ctx context.Context, sessionID string, identity *document.FieldSet) (PersonKey, error) {
	key, err := KeyFor(identity)
	if err != nil {
		return "", err
	}

	err = c.gateway.Put(ctx, store.CollectionSessions, sessionID, map[string]string{sessionKeyField: string(key)})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	c.mu.Lock()
	prev, had := c.sessions[sessionID]
	c.sessions[sessionID] = key
	c.mu.Unlock()

	if had && prev != key {
		c.logger.Warn("session re-keyed by new identity card",
			"session_id", sessionID, "previous_key", prev, "person_key", key)
	}
	return key, nil
}

// Lookup returns the key already assigned to sessionID.
func (c *Correlator) Lookup(ctx context.Context, sessionID string) (PersonKey, error) {
	c.mu.RLock()
	key, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	fields, err := c.gateway.Get(ctx, store.CollectionSessions, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrMissingIdentity
		}
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	key = PersonKey(fields[sessionKeyField])
	if key == "" {
		return "", ErrMissingIdentity
	}

	c.mu.Lock()
	c.sessions[sessionID] = key
	c.mu.Unlock()
	return key, nil
}

// forget evicts sessionID from memory. The persisted mapping is kept.
func (c *Correlator) forget(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}
