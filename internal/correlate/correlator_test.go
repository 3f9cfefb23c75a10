package correlate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/store"
)

func TestDeriveKey_Equivalence(t *testing.T) {
	names := []string{
		"John Doe",
		"john   DOE",
		"John (陈) Doe",
		"  JOHN\nDOE  ",
		"John, Doe.",
		"JOHN DOE (陈约翰)",
	}
	for _, name := range names {
		assert.Equal(t, PersonKey("john_doe"), DeriveKey(name), name)
	}
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		in   string
		want PersonKey
	}{
		{"", ""},
		{"(陈)", ""},
		{"!!!", ""},
		{"Tan Ah Kow", "tan_ah_kow"},
		{"MARY-ANN O'BRIEN", "maryann_obrien"},
		{"Agent 007", "agent_007"},
		{"Zoë Ålund", "zoë_ålund"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveKey(tt.in))
		})
	}
}

func identity(name string) *document.FieldSet {
	fs := document.NewFieldSet(document.KindIdentityCard, map[string]string{
		document.FieldIdentityCardNo: "S1234567A",
		document.FieldName:           name,
	})
	return &fs
}

func TestAssignOrFetchKey_IdentityThenLookup(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	c := New(gw)

	key, err := c.AssignOrFetchKey(ctx, "chat-1", identity("JOHN DOE"))
	require.NoError(t, err)
	assert.Equal(t, PersonKey("john_doe"), key)

	persisted, err := gw.Get(ctx, store.CollectionSessions, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "john_doe", persisted["person_key"])

	key, err = c.AssignOrFetchKey(ctx, "chat-1", nil)
	require.NoError(t, err)
	assert.Equal(t, PersonKey("john_doe"), key)
}

func TestAssignOrFetchKey_FallsBackToGateway(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()

	first := New(gw)
	_, err := first.AssignOrFetchKey(ctx, "chat-1", identity("JOHN DOE"))
	require.NoError(t, err)

	// A fresh correlator models a process restart.
	restarted := New(gw)
	key, err := restarted.AssignOrFetchKey(ctx, "chat-1", nil)
	require.NoError(t, err)
	assert.Equal(t, PersonKey("john_doe"), key)
}

func TestAssignOrFetchKey_MissingIdentity(t *testing.T) {
	c := New(store.NewMemory())

	_, err := c.AssignOrFetchKey(context.Background(), "chat-unknown", nil)
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestAssignOrFetchKey_UnreadableName(t *testing.T) {
	c := New(store.NewMemory())

	fs := document.NewFieldSet(document.KindIdentityCard, map[string]string{document.FieldIdentityCardNo: "S1234567A"})
	_, err := c.AssignOrFetchKey(context.Background(), "chat-1", &fs)
	assert.ErrorIs(t, err, ErrMissingIdentity)

	_, err = c.AssignOrFetchKey(context.Background(), "chat-1", identity("(陈)"))
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestAssignOrFetchKey_ReKeysOnDifferentName(t *testing.T) {
	ctx := context.Background()
	c := New(store.NewMemory())

	_, err := c.AssignOrFetchKey(ctx, "chat-1", identity("JOHN DOE"))
	require.NoError(t, err)
	key, err := c.AssignOrFetchKey(ctx, "chat-1", identity("JANE ROE"))
	require.NoError(t, err)
	assert.Equal(t, PersonKey("jane_roe"), key)

	key, err = c.Lookup(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, PersonKey("jane_roe"), key)
}

func TestKeyFor(t *testing.T) {
	key, err := KeyFor(identity("John  Doe"))
	require.NoError(t, err)
	assert.Equal(t, PersonKey("john_doe"), key)

	_, err = KeyFor(identity("(陈约翰)"))
	assert.ErrorIs(t, err, ErrMissingIdentity)

	_, err = KeyFor(&document.FieldSet{})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	gw := &countingGateway{Gateway: store.NewMemory()}
	c := New(gw)

	_, err := c.AssignOrFetchKey(ctx, "chat-1", identity("JOHN DOE"))
	require.NoError(t, err)

	_, err = c.Lookup(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 0, gw.gets, "cached key needs no gateway read")

	c.forget("chat-1")
	_, err = c.Lookup(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.gets)
}

func TestAssignOrFetchKey_GatewayFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	c := New(failingGateway{err: boom})

	_, err := c.AssignOrFetchKey(ctx, "chat-1", identity("JOHN DOE"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, boom)

	_, err = c.AssignOrFetchKey(ctx, "chat-1", nil)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrMissingIdentity)
}

type countingGateway struct {
	store.Gateway
	gets int
}

func (g *countingGateway) Get(ctx context.Context, collection, key string) (map[string]string, error) {
	g.gets++
	return g.Gateway.Get(ctx, collection, key)
}

type failingGateway struct{ err error }

func (f failingGateway) Put(context.Context, string, string, map[string]string) error { return f.err }

func (f failingGateway) Get(context.Context, string, string) (map[string]string, error) {
	return nil, f.err
}
