package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitSyncAppends(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	event := NewEvent("admin-1", ActionUserCreated, "users")
	event.RecordID = "user-9"
	require.NoError(t, pub.Emit(t.Context(), event))

	events, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "admin-1", events[0].Actor)
	assert.Equal(t, ActionUserCreated, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEmitAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 5 {
		require.NoError(t, pub.Emit(t.Context(), NewEvent("admin-1", ActionUsersListed, "users")))
	}
	pub.Close()

	events, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestEmitSetsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(t.Context(), Event{Actor: "a", Action: ActionLedgerHashed, TableName: "ledger"}))
	events, _ := store.ListRecent(t.Context(), 1)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}
